// Package approval owns the per-pairing set of tool-approval requests and
// their lifecycle: pending until decided or expired, then immutable.
//
// Expiry is lazy. There is no background sweep; a pending request past its
// deadline is flipped to expired at the start of whichever actor operation
// observes it next, so expiry stays a pure function of
// (status, expiresAt, now).
package approval

import (
	"errors"
	"sort"
	"sync"
	"time"
)

const (
	// RequestTTL is how long a request accepts a decision (current
	// protocol generation).
	RequestTTL = 120 * time.Second

	// LegacyRequestTTL applies to requests created through the
	// body-credential protocol generation.
	LegacyRequestTTL = 600 * time.Second

	// MaxPendingRequests caps in-flight requests per pairing.
	MaxPendingRequests = 2000

	// retention is how long decided and expired requests are kept before
	// the lazy sweep drops them.
	retention = 24 * time.Hour
)

var (
	// ErrTooManyPending is returned by Create when the pending cap is hit.
	ErrTooManyPending = errors.New("too many pending requests")

	// ErrAlreadyDecided is returned by Decide for non-pending requests.
	ErrAlreadyDecided = errors.New("request already decided")

	// ErrDuplicateRequest is returned by Create when the request id exists.
	ErrDuplicateRequest = errors.New("request id already exists")
)

// Requests is the single writer for approval-request state, one logical
// owner per pairing id.
type Requests struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRequests creates the actor over the given store.
func NewRequests(store Store) *Requests {
	return &Requests{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (a *Requests) lockFor(pairingID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.locks[pairingID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[pairingID] = l
	}
	return l
}

// sweep flips overdue pending requests to expired and drops terminal
// records older than the retention bound. Returns true if anything changed.
func sweep(set map[string]*Request, nowMillis int64) bool {
	changed := false
	for id, req := range set {
		if req.Status == StatusPending && nowMillis > req.ExpiresAt {
			req.Status = StatusExpired
			changed = true
		}
		if req.Status.Terminal() && nowMillis-req.ExpiresAt > retention.Milliseconds() {
			delete(set, id)
			changed = true
		}
	}
	return changed
}

// Create inserts a new pending request with the given TTL. It fails with
// ErrTooManyPending once MaxPendingRequests are in flight for the pairing
// and with ErrDuplicateRequest if the id is taken.
func (a *Requests) Create(pairingID, requestID string, payload Payload, ttl time.Duration) (*Request, error) {
	l := a.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	set, err := a.store.Load(pairingID)
	if err != nil {
		return nil, err
	}

	now := a.now().UnixMilli()
	sweep(set, now)

	if _, exists := set[requestID]; exists {
		return nil, ErrDuplicateRequest
	}

	pending := 0
	for _, req := range set {
		if req.Status == StatusPending {
			pending++
		}
	}
	if pending >= MaxPendingRequests {
		return nil, ErrTooManyPending
	}

	req := &Request{
		RequestID: requestID,
		PairingID: pairingID,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now + ttl.Milliseconds(),
	}
	set[requestID] = req

	if err := a.store.Save(pairingID, set); err != nil {
		return nil, err
	}
	out := *req
	return &out, nil
}

// Get returns a request by id, after the lazy expiry sweep. Callers at the
// API boundary may collapse ErrNotFound into an expired status; a record
// dropped by retention is indistinguishable from one that never existed.
func (a *Requests) Get(pairingID, requestID string) (*Request, error) {
	l := a.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	set, err := a.store.Load(pairingID)
	if err != nil {
		return nil, err
	}

	if sweep(set, a.now().UnixMilli()) {
		if err := a.store.Save(pairingID, set); err != nil {
			return nil, err
		}
	}

	req, ok := set[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *req
	return &out, nil
}

// Decide records the one and only decision for a pending request. A second
// call for the same id always fails, whatever the first decision was.
func (a *Requests) Decide(pairingID, requestID string, decision Decision, scope Scope) (*Request, error) {
	l := a.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	set, err := a.store.Load(pairingID)
	if err != nil {
		return nil, err
	}
	sweep(set, a.now().UnixMilli())

	req, ok := set[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Status != StatusPending {
		return nil, ErrAlreadyDecided
	}

	if decision == DecisionAllow {
		req.Status = StatusAllowed
	} else {
		req.Status = StatusDenied
	}
	req.Scope = scope

	if err := a.store.Save(pairingID, set); err != nil {
		return nil, err
	}
	out := *req
	return &out, nil
}

// ListPending returns the pending requests for a pairing, newest first,
// after the lazy expiry sweep.
func (a *Requests) ListPending(pairingID string) ([]*Request, error) {
	l := a.lockFor(pairingID)
	l.Lock()
	defer l.Unlock()

	set, err := a.store.Load(pairingID)
	if err != nil {
		return nil, err
	}

	if sweep(set, a.now().UnixMilli()) {
		if err := a.store.Save(pairingID, set); err != nil {
			return nil, err
		}
	}

	var pending []*Request
	for _, req := range set {
		if req.Status == StatusPending {
			out := *req
			pending = append(pending, &out)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt != pending[j].CreatedAt {
			return pending[i].CreatedAt > pending[j].CreatedAt
		}
		return pending[i].RequestID > pending[j].RequestID
	})
	return pending, nil
}
