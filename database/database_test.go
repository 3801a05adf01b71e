package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashlock/internal/hashlock"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestClaimSecretRoundTrip(t *testing.T) {
	db := openTestDB(t)

	secret, err := hashlock.RandomSecret()
	require.NoError(t, err)
	noteID := []byte("note-1")

	require.NoError(t, db.PutClaimSecret(noteID, secret))
	got, err := db.FetchClaimSecret(noteID)
	require.NoError(t, err)
	assert.True(t, hashlock.ComputeDigest(got).Equal(hashlock.ComputeDigest(secret)))

	_, err = db.FetchClaimSecret([]byte("unknown"))
	assert.ErrorIs(t, err, ErrNoSecret)

	require.NoError(t, db.RemoveClaimSecret(noteID))
	_, err = db.FetchClaimSecret(noteID)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestNoteRecordsAndBalance(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.PutNoteRecord([]byte("note-1"), false, 100))
	require.NoError(t, db.PutNoteRecord([]byte("note-2"), false, 250))
	require.NoError(t, db.PutNoteRecord([]byte("note-3"), true, 999))

	balance, err := db.ClaimableBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(350), balance)

	ids, err := db.ClaimableNoteIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, db.MarkConsumed([]byte("note-1")))
	balance, err = db.ClaimableBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(250), balance)

	ids, err = db.ClaimableNoteIDs()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, []byte("note-2"), ids[0])

	assert.Error(t, db.MarkConsumed([]byte("unknown")))
}

func TestSyncedHeight(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetSyncedHeight()
	assert.Error(t, err)

	require.NoError(t, db.UpdateSyncedHeight(42))
	h, err := db.GetSyncedHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), h)

	require.NoError(t, db.UpdateSyncedHeight(43))
	h, err = db.GetSyncedHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(43), h)
}
