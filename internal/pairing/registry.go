// Package pairing owns per-device pairing state: the shared HMAC secret,
// the push subscription, the seen-nonce cache, and the request rate
// limiter.
//
// All mutations for one pairing id flow through the Registry, which holds a
// per-key lock for the duration of each operation. Nonce checks and
// rate-limit bookkeeping are check-then-act sequences; without this
// serialization a replayed request racing the original could slip through.
// Operations on distinct pairings never contend.
package pairing

import (
	"errors"
	"sync"
	"time"
)

const (
	// NonceTTLSeconds bounds how long a seen nonce is remembered. Together
	// with the timestamp drift check this caps the replay window.
	NonceTTLSeconds = 600

	// RateLimitWindowSeconds is the fixed rate-limit window length.
	RateLimitWindowSeconds = 600

	// MaxRequestsPerWindow caps approval-request creations per window.
	MaxRequestsPerWindow = 30
)

var (
	// ErrNonceReused is returned when a nonce was already seen within its TTL.
	ErrNonceReused = errors.New("nonce already used")

	// ErrRateLimited is returned when the fixed window is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Registry is the single writer for pairing records. One logical owner per
// pairing id, implemented as a lock table over a shared store.
type Registry struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Registry) lockFor(pairingID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[pairingID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[pairingID] = l
	}
	return l
}

// Register initializes (or reinitializes) the pairing record. Called once
// at pairing time; any previous record for the id is overwritten.
func (r *Registry) Register(pairingID, secret string) error {
	l := r.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	rec := &Record{
		PairingID:  pairingID,
		Secret:     secret,
		UsedNonces: make(map[string]int64),
		CreatedAt:  r.now().UnixMilli(),
	}
	return r.store.Save(rec)
}

// RegisterPush attaches or replaces the push subscription for a pairing.
func (r *Registry) RegisterPush(pairingID string, sub PushSubscription) error {
	l := r.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	rec, err := r.store.Load(pairingID)
	if err != nil {
		return err
	}
	rec.Push = &sub
	return r.store.Save(rec)
}

// Get returns the pairing record, or ErrNotFound.
func (r *Registry) Get(pairingID string) (*Record, error) {
	l := r.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	return r.store.Load(pairingID)
}

// CheckNonce atomically rejects a nonce seen within NonceTTLSeconds and
// records it otherwise. Expired nonces are evicted here, on the same call;
// there is no background sweep.
func (r *Registry) CheckNonce(pairingID, nonce string) error {
	l := r.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	rec, err := r.store.Load(pairingID)
	if err != nil {
		return err
	}

	now := r.now().Unix()
	for n, seenAt := range rec.UsedNonces {
		if now-seenAt > NonceTTLSeconds {
			delete(rec.UsedNonces, n)
		}
	}

	if _, seen := rec.UsedNonces[nonce]; seen {
		return ErrNonceReused
	}

	if rec.UsedNonces == nil {
		rec.UsedNonces = make(map[string]int64)
	}
	rec.UsedNonces[nonce] = now
	return r.store.Save(rec)
}

// CheckRateLimit reports whether another approval request fits in the
// current window, resetting the window lazily if it has elapsed.
func (r *Registry) CheckRateLimit(pairingID string) error {
	l := r.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	rec, err := r.store.Load(pairingID)
	if err != nil {
		return err
	}

	now := r.now().Unix()
	if now-rec.WindowStart > RateLimitWindowSeconds {
		rec.WindowStart = now
		rec.RequestCount = 0
		if err := r.store.Save(rec); err != nil {
			return err
		}
	}

	if rec.RequestCount >= MaxRequestsPerWindow {
		return ErrRateLimited
	}
	return nil
}

// IncrementRequestCount charges one request against the current window.
func (r *Registry) IncrementRequestCount(pairingID string) error {
	l := r.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	rec, err := r.store.Load(pairingID)
	if err != nil {
		return err
	}
	rec.RequestCount++
	return r.store.Save(rec)
}
