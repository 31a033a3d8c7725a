package relay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Backlog(ctx, "room")
	require.NoError(t, err)
	assert.Empty(t, got, "fresh room has no backlog")

	require.NoError(t, store.Append(ctx, "room", []byte(`{"type":"join"}`)))
	require.NoError(t, store.Append(ctx, "room", []byte(`{"type":"leave"}`)))
	require.NoError(t, store.Append(ctx, "other", []byte(`{"type":"join"}`)))

	got, err = store.Backlog(ctx, "room")
	require.NoError(t, err)
	require.Len(t, got, 2, "backlog is per room")
	assert.Equal(t, `{"type":"join"}`, string(got[0]), "append order preserved")
	assert.Equal(t, `{"type":"leave"}`, string(got[1]))
}

func TestMemStore(t *testing.T) {
	testStoreRoundTrip(t, NewMemStore())
}

func TestMemStoreCopiesPayloads(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	payload := []byte(`{"type":"join"}`)
	require.NoError(t, store.Append(ctx, "room", payload))
	payload[0] = 'X'

	got, err := store.Backlog(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"join"}`, string(got[0]))
}

func TestSQLStore(t *testing.T) {
	store, err := NewSQLStore(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	defer store.Close()

	testStoreRoundTrip(t, store)
}

func TestSQLStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")
	ctx := context.Background()

	store, err := NewSQLStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "room", []byte(`{"type":"join"}`)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Backlog(ctx, "room")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"type":"join"}`, string(got[0]))
}

func TestSQLStoreErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := newSQLStoreWithDB(db)
	ctx := context.Background()

	boom := errors.New("disk full")
	mock.ExpectExec("INSERT INTO messages").WillReturnError(boom)
	assert.ErrorIs(t, store.Append(ctx, "room", []byte(`{}`)), boom)

	mock.ExpectQuery("SELECT payload FROM messages").WillReturnError(boom)
	_, err = store.Backlog(ctx, "room")
	assert.ErrorIs(t, err, boom)

	mock.ExpectClose()
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
