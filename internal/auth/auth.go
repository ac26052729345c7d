// Package auth authenticates inbound API calls against a pairing's shared
// secret. Two wire generations carry the same four credentials, the
// current one in headers and the legacy one embedded in the body or query
// string, and both feed this single verifier.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/pocketgate/pocketgate/internal/pairing"
	"github.com/pocketgate/pocketgate/internal/signature"
)

// MaxTimestampDriftSeconds bounds the gap between the client's clock and
// ours. Together with the nonce cache it bounds the replay window.
const MaxTimestampDriftSeconds = 60

var (
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrNonceReused         = errors.New("nonce already used")
	ErrInvalidSignature    = errors.New("invalid signature")
)

// Credentials are the four values every authenticated call must carry.
type Credentials struct {
	PairingID string
	Timestamp int64 // unix seconds
	Nonce     string
	Signature string // standard base64 HMAC-SHA256
}

// Authenticator verifies signed requests against the pairing registry.
type Authenticator struct {
	registry *pairing.Registry
	now      func() time.Time
}

// NewAuthenticator creates an authenticator over the registry.
func NewAuthenticator(registry *pairing.Registry) *Authenticator {
	return &Authenticator{registry: registry, now: time.Now}
}

// Authenticate verifies the credentials for a request and returns the
// authenticated pairing id. Checks run in a fixed order, short-circuiting
// on the first failure: presence, timestamp drift, device lookup, nonce
// single-use, signature.
//
// body must be the exact bytes the client hashed; for the legacy body
// generation that means the signature field value has been blanked.
func (a *Authenticator) Authenticate(method, path string, body []byte, c Credentials) (string, error) {
	if c.PairingID == "" || c.Timestamp == 0 || c.Nonce == "" || c.Signature == "" {
		return "", ErrMissingCredentials
	}

	now := a.now().Unix()
	drift := now - c.Timestamp
	if drift < 0 {
		drift = -drift
	}
	if drift > MaxTimestampDriftSeconds {
		return "", ErrTimestampOutOfRange
	}

	rec, err := a.registry.Get(c.PairingID)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			return "", ErrDeviceNotFound
		}
		return "", fmt.Errorf("loading pairing: %w", err)
	}

	if err := a.registry.CheckNonce(c.PairingID, c.Nonce); err != nil {
		if errors.Is(err, pairing.ErrNonceReused) {
			return "", ErrNonceReused
		}
		return "", fmt.Errorf("checking nonce: %w", err)
	}

	secret, err := base64.StdEncoding.DecodeString(rec.Secret)
	if err != nil {
		return "", fmt.Errorf("decoding pairing secret: %w", err)
	}

	canonical := signature.CanonicalString(method, path, signature.HashBody(body), c.Timestamp, c.Nonce)
	if !signature.Verify(secret, canonical, c.Signature) {
		return "", ErrInvalidSignature
	}

	return c.PairingID, nil
}
