package pairing

// PushSubscription holds the Web Push delivery coordinates for a paired
// mobile device. Key material stays base64-encoded at rest, mirroring the
// wire representation.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Record is the full per-pairing state owned by the registry: the shared
// secret, the optional push subscription, the replay-protection nonce
// cache, and the fixed-window rate-limit counters.
type Record struct {
	PairingID string            `json:"pairingId"`
	Secret    string            `json:"pairingSecret"` // standard base64, 32 bytes raw
	Push      *PushSubscription `json:"pushSubscription,omitempty"`

	// UsedNonces maps a nonce to the unix second it was first seen.
	// A nonce present here is rejected until evicted by TTL.
	UsedNonces map[string]int64 `json:"usedNonces,omitempty"`

	RequestCount int   `json:"requestCount"`
	WindowStart  int64 `json:"windowStart"` // unix seconds

	CreatedAt int64 `json:"createdAt"` // unix milliseconds
}

func (r *Record) clone() *Record {
	out := *r
	if r.Push != nil {
		push := *r.Push
		out.Push = &push
	}
	if r.UsedNonces != nil {
		out.UsedNonces = make(map[string]int64, len(r.UsedNonces))
		for n, ts := range r.UsedNonces {
			out.UsedNonces[n] = ts
		}
	}
	return &out
}
