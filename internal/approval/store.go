package approval

import "errors"

var (
	// ErrNotFound is returned when no request exists for the given id.
	ErrNotFound = errors.New("approval request not found")
)

// Store persists the per-pairing request set as one unit. Loading and
// saving whole sets keeps the storage model aligned with single-writer
// ownership: one blob per pairing id, only ever written by its actor.
type Store interface {
	// Load returns all requests for a pairing, keyed by request id.
	// A pairing with no requests yields an empty map, not an error.
	Load(pairingID string) (map[string]*Request, error)
	// Save replaces the request set for a pairing.
	Save(pairingID string, requests map[string]*Request) error
}
