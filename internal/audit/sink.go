// Package audit records security-relevant events: pairings created,
// approval requests opened and decided, and rejected authentication
// attempts. Records never contain secrets or signatures.
package audit

import (
	"context"
	"time"
)

// Event classifies an audit record.
type Event string

const (
	EventPairCreated    Event = "pair.created"
	EventPushRegistered Event = "push.registered"
	EventRequestCreated Event = "request.created"
	EventDecision       Event = "request.decided"
	EventAuthRejected   Event = "auth.rejected"
)

// Record is one audit entry.
type Record struct {
	Time      time.Time
	Event     Event
	PairingID string
	RequestID string
	Detail    string
}

// Sink receives audit records. A sink only stores data; it is never
// queried on the request path.
type Sink interface {
	Ingest(ctx context.Context, records []Record) error
}
