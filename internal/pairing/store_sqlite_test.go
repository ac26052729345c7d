package pairing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	rec := &Record{
		PairingID: "p1",
		Secret:    "c2VjcmV0",
		Push: &PushSubscription{
			Endpoint: "https://push.example/x",
			P256dh:   "a2V5",
			Auth:     "YXV0aA",
		},
		UsedNonces:   map[string]int64{"n1": 1_700_000_000},
		RequestCount: 4,
		WindowStart:  1_700_000_000,
		CreatedAt:    1_700_000_000_000,
	}
	require.NoError(t, store.Save(rec))

	got, err := store.Load("p1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSQLiteStoreLoadMissing(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Save(&Record{PairingID: "p1", Secret: "old"}))
	require.NoError(t, store.Save(&Record{PairingID: "p1", Secret: "new"}))

	got, err := store.Load("p1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Secret)
}
