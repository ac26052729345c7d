package approval

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRequests(t *testing.T) (*Requests, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	reqs := NewRequests(NewMemoryStore())
	reqs.now = clock.Now
	return reqs, clock
}

func TestCreateThenDenyThenConflict(t *testing.T) {
	reqs, clock := newTestRequests(t)

	created, err := reqs.Create("p1", "r1", Payload{Tool: "Bash", Details: "ls -la"}, RequestTTL)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, clock.Now().UnixMilli(), created.CreatedAt)
	assert.Equal(t, created.CreatedAt+120_000, created.ExpiresAt)

	decided, err := reqs.Decide("p1", "r1", DecisionDeny, "")
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, decided.Status)

	_, err = reqs.Decide("p1", "r1", DecisionAllow, "")
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	got, err := reqs.Get("p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, got.Status)
}

func TestDecideRecordsScope(t *testing.T) {
	reqs, _ := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)

	decided, err := reqs.Decide("p1", "r1", DecisionAllow, ScopeSessionTool)
	require.NoError(t, err)
	assert.Equal(t, StatusAllowed, decided.Status)
	assert.Equal(t, ScopeSessionTool, decided.Scope)
}

func TestDecideUnknownRequest(t *testing.T) {
	reqs, _ := newTestRequests(t)

	_, err := reqs.Decide("p1", "missing", DecisionAllow, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryIsLazyAndMonotonic(t *testing.T) {
	reqs, clock := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)

	clock.Advance(RequestTTL + time.Millisecond)

	got, err := reqs.Get("p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	// Terminal: a decision after expiry must not resurrect it.
	_, err = reqs.Decide("p1", "r1", DecisionAllow, "")
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	got, err = reqs.Get("p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestDecisionJustBeforeExpiryWins(t *testing.T) {
	reqs, clock := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)

	clock.Advance(RequestTTL - time.Second)
	decided, err := reqs.Decide("p1", "r1", DecisionAllow, ScopeOnce)
	require.NoError(t, err)
	assert.Equal(t, StatusAllowed, decided.Status)

	// Past the deadline a decided request stays decided.
	clock.Advance(time.Hour)
	got, err := reqs.Get("p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusAllowed, got.Status)
}

func TestLegacyTTL(t *testing.T) {
	reqs, clock := newTestRequests(t)

	created, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, LegacyRequestTTL)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt+600_000, created.ExpiresAt)

	clock.Advance(RequestTTL + time.Second)
	got, err := reqs.Get("p1", "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status, "legacy requests outlive the short TTL")
}

func TestCreateDuplicateID(t *testing.T) {
	reqs, _ := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)

	_, err = reqs.Create("p1", "r1", Payload{Tool: "Write"}, RequestTTL)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestTooManyPending(t *testing.T) {
	reqs, _ := newTestRequests(t)

	for i := 0; i < MaxPendingRequests; i++ {
		_, err := reqs.Create("p1", fmt.Sprintf("r%d", i), Payload{Tool: "Bash"}, RequestTTL)
		require.NoError(t, err)
	}

	_, err := reqs.Create("p1", "overflow", Payload{Tool: "Bash"}, RequestTTL)
	assert.ErrorIs(t, err, ErrTooManyPending)

	// Other pairings are unaffected.
	_, err = reqs.Create("p2", "r1", Payload{Tool: "Bash"}, RequestTTL)
	assert.NoError(t, err)
}

func TestPendingSlotFreedByExpiry(t *testing.T) {
	reqs, clock := newTestRequests(t)

	for i := 0; i < MaxPendingRequests; i++ {
		_, err := reqs.Create("p1", fmt.Sprintf("r%d", i), Payload{Tool: "Bash"}, RequestTTL)
		require.NoError(t, err)
	}

	clock.Advance(RequestTTL + time.Second)
	_, err := reqs.Create("p1", "fresh", Payload{Tool: "Bash"}, RequestTTL)
	assert.NoError(t, err, "expired requests no longer count against the cap")
}

func TestListPendingNewestFirst(t *testing.T) {
	reqs, clock := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = reqs.Create("p1", "r2", Payload{Tool: "Write"}, RequestTTL)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = reqs.Create("p1", "r3", Payload{Tool: "Edit"}, RequestTTL)
	require.NoError(t, err)

	_, err = reqs.Decide("p1", "r2", DecisionAllow, "")
	require.NoError(t, err)

	pending, err := reqs.ListPending("p1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r3", pending[0].RequestID)
	assert.Equal(t, "r1", pending[1].RequestID)
}

func TestListPendingSweepsExpired(t *testing.T) {
	reqs, clock := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)
	clock.Advance(RequestTTL + time.Second)
	_, err = reqs.Create("p1", "r2", Payload{Tool: "Write"}, RequestTTL)
	require.NoError(t, err)

	pending, err := reqs.ListPending("p1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].RequestID)
}

func TestRetentionPrunesOldTerminalRecords(t *testing.T) {
	reqs, clock := newTestRequests(t)

	_, err := reqs.Create("p1", "r1", Payload{Tool: "Bash"}, RequestTTL)
	require.NoError(t, err)
	_, err = reqs.Decide("p1", "r1", DecisionAllow, "")
	require.NoError(t, err)

	clock.Advance(retention + RequestTTL + time.Hour)

	_, err = reqs.Get("p1", "r1")
	assert.ErrorIs(t, err, ErrNotFound, "terminal records are dropped after retention")
}
