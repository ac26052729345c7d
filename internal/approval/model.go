package approval

// Status is the lifecycle state of an approval request. Transitions are
// monotonic: pending may become allowed, denied, or expired; terminal
// states never change.
type Status string

const (
	StatusPending Status = "pending"
	StatusAllowed Status = "allowed"
	StatusDenied  Status = "denied"
	StatusExpired Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAllowed || s == StatusDenied || s == StatusExpired
}

// Decision is the human's answer to an approval request.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Valid reports whether d is one of the two accepted decisions.
func (d Decision) Valid() bool {
	return d == DecisionAllow || d == DecisionDeny
}

// Scope is the breadth of a decision. It is recorded verbatim and
// interpreted entirely by the agent-side hook's local caching.
type Scope string

const (
	ScopeOnce        Scope = "once"
	ScopeSessionTool Scope = "session-tool"
	ScopeSessionAll  Scope = "session-all"
)

// Valid reports whether s is empty or one of the defined scopes.
func (s Scope) Valid() bool {
	switch s {
	case "", ScopeOnce, ScopeSessionTool, ScopeSessionAll:
		return true
	}
	return false
}

// Payload describes the tool invocation awaiting approval. It is opaque to
// the actor; only the notification text peeks inside.
type Payload struct {
	Tool    string   `json:"tool"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`
	Details string   `json:"details,omitempty"`
}

// Request is one tool-approval request, keyed by request id within its
// pairing.
type Request struct {
	RequestID string  `json:"requestId"`
	PairingID string  `json:"pairingId"`
	Payload   Payload `json:"payload"`
	Status    Status  `json:"status"`
	Scope     Scope   `json:"scope,omitempty"`
	CreatedAt int64   `json:"createdAt"` // epoch milliseconds
	ExpiresAt int64   `json:"expiresAt"` // epoch milliseconds
}
