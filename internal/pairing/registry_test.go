package pairing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	reg := NewRegistry(NewMemoryStore())
	reg.now = clock.Now
	return reg, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRegisterAndGet(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Register("p1", "c2VjcmV0"))

	rec, err := reg.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.PairingID)
	assert.Equal(t, "c2VjcmV0", rec.Secret)
	assert.Nil(t, rec.Push)
}

func TestRegisterOverwrites(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Register("p1", "old"))
	require.NoError(t, reg.RegisterPush("p1", PushSubscription{Endpoint: "https://push.example/x"}))
	require.NoError(t, reg.Register("p1", "new"))

	rec, err := reg.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "new", rec.Secret)
	assert.Nil(t, rec.Push, "re-pairing drops the old push subscription")
}

func TestGetUnknownPairing(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterPushRequiresRecord(t *testing.T) {
	reg, _ := newTestRegistry(t)

	err := reg.RegisterPush("missing", PushSubscription{Endpoint: "https://push.example/x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterPushReplaces(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("p1", "s"))

	require.NoError(t, reg.RegisterPush("p1", PushSubscription{Endpoint: "https://push.example/a"}))
	require.NoError(t, reg.RegisterPush("p1", PushSubscription{Endpoint: "https://push.example/b"}))

	rec, err := reg.Get("p1")
	require.NoError(t, err)
	require.NotNil(t, rec.Push)
	assert.Equal(t, "https://push.example/b", rec.Push.Endpoint)
}

func TestCheckNonceRejectsReuse(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("p1", "s"))

	require.NoError(t, reg.CheckNonce("p1", "n1"))
	assert.ErrorIs(t, reg.CheckNonce("p1", "n1"), ErrNonceReused)

	// A different nonce is still fine.
	require.NoError(t, reg.CheckNonce("p1", "n2"))
}

func TestCheckNonceEvictsAfterTTL(t *testing.T) {
	reg, clock := newTestRegistry(t)
	require.NoError(t, reg.Register("p1", "s"))

	require.NoError(t, reg.CheckNonce("p1", "n1"))

	clock.Advance((NonceTTLSeconds + 1) * time.Second)
	assert.NoError(t, reg.CheckNonce("p1", "n1"), "evicted nonce may be reused")
}

func TestCheckNonceWithinTTLStillRejected(t *testing.T) {
	reg, clock := newTestRegistry(t)
	require.NoError(t, reg.Register("p1", "s"))

	require.NoError(t, reg.CheckNonce("p1", "n1"))
	clock.Advance((NonceTTLSeconds - 1) * time.Second)
	assert.ErrorIs(t, reg.CheckNonce("p1", "n1"), ErrNonceReused)
}

func TestRateLimitWindow(t *testing.T) {
	reg, clock := newTestRegistry(t)
	require.NoError(t, reg.Register("p1", "s"))

	for i := 0; i < MaxRequestsPerWindow; i++ {
		require.NoError(t, reg.CheckRateLimit("p1"), "request %d", i)
		require.NoError(t, reg.IncrementRequestCount("p1"))
	}
	assert.ErrorIs(t, reg.CheckRateLimit("p1"), ErrRateLimited)

	// Window elapses; counter resets lazily on the next check.
	clock.Advance((RateLimitWindowSeconds + 1) * time.Second)
	assert.NoError(t, reg.CheckRateLimit("p1"))

	rec, err := reg.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.RequestCount)
}

func TestRateLimitIsPerPairing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	require.NoError(t, reg.Register("p1", "s"))
	require.NoError(t, reg.Register("p2", "s"))

	for i := 0; i < MaxRequestsPerWindow; i++ {
		require.NoError(t, reg.CheckRateLimit("p1"))
		require.NoError(t, reg.IncrementRequestCount("p1"))
	}
	assert.ErrorIs(t, reg.CheckRateLimit("p1"), ErrRateLimited)
	assert.NoError(t, reg.CheckRateLimit("p2"))
}
