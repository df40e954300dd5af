package db_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(&config.DbConfig{
		Path:         filepath.Join(t.TempDir(), "nested", "memorease.db"),
		BusyTimeout:  time.Second,
		MaxOpenConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func row(id int64, name string) db.DeceasedRow {
	return db.DeceasedRow{
		ID:        id,
		FirstName: sql.NullString{String: name, Valid: true},
		FullName:  sql.NullString{String: name + " Doe", Valid: true},
		SyncedAt:  "2026-01-01T00:00:00Z",
	}
}

func ids(rows []db.DeceasedRow) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_InitializeTwiceKeepsRows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana"), row(2, "Ben")}))
	require.NoError(t, store.Initialize(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_UpsertManyOverwritesByIdentity(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana"), row(2, "Ben")}))
	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(2, "Bea"), row(3, "Cid")}))

	rows, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(rows))
	assert.Equal(t, "Bea", rows[1].FirstName.String)
}

func TestStore_UpsertManyEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana")}))
	require.NoError(t, store.UpsertMany(ctx, nil))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_ReplaceAllPurgesStaleRows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana"), row(2, "Ben"), row(3, "Cid")}))
	require.NoError(t, store.ReplaceAll(ctx, []db.DeceasedRow{row(3, "Cy"), row(4, "Dee")}))

	rows, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(rows))
	assert.Equal(t, "Cy", rows[0].FirstName.String)

	// A second replace reuses the keep table inside a new transaction.
	require.NoError(t, store.ReplaceAll(ctx, []db.DeceasedRow{row(4, "Dee")}))
	rows, err = store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(rows))
}

func TestStore_ReplaceAllEmptyClearsTable(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana")}))
	require.NoError(t, store.ReplaceAll(ctx, nil))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_FailedBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana")}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := store.ReplaceAll(cancelled, []db.DeceasedRow{row(2, "Ben")})
	require.Error(t, err)

	rows, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(rows))
	assert.Equal(t, "Ana", rows[0].FirstName.String)
}

func TestStore_ClosedReturnsErrClosed(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.ReadAll(ctx)
	assert.ErrorIs(t, err, db.ErrClosed)
	assert.ErrorIs(t, store.UpsertMany(ctx, []db.DeceasedRow{row(1, "Ana")}), db.ErrClosed)
	assert.ErrorIs(t, store.Initialize(ctx), db.ErrClosed)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.DbConfig{Path: filepath.Join(t.TempDir(), "memorease.db"), MaxOpenConns: 1}

	store, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.UpsertMany(ctx, []db.DeceasedRow{row(7, "Eve")}))
	require.NoError(t, store.Close())

	reopened, err := db.Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(ctx))

	rows, err := reopened.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Eve Doe", rows[0].FullName.String)
}
