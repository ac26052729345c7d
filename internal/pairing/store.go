package pairing

import "errors"

var (
	// ErrNotFound is returned when no pairing exists for the given id.
	ErrNotFound = errors.New("pairing not found")
)

// Store persists pairing records keyed by pairing id. Implementations only
// need to be safe for concurrent use; serialization of check-then-act
// sequences is the Registry's job.
type Store interface {
	// Load retrieves a pairing record by id.
	Load(pairingID string) (*Record, error)
	// Save stores or replaces a pairing record.
	Save(rec *Record) error
}
