package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/session"
	"envbench/internal/stats"
	"envbench/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.OpenAt(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id string, ts time.Time) storage.RunRecord {
	return storage.RunRecord{
		ID:        id,
		Timestamp: ts,
		Target:    "http://localhost:8000",
		Modes:     []string{"ws"},
		Summaries: []stats.Summary{{Mode: session.ModeWS, BatchSize: 10, Successful: 10}},
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store := openStore(t)

	rec := record("run-1", time.Now())
	require.NoError(t, store.Save(rec))

	got, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, rec.Target, got.Target)
	require.Len(t, got.Summaries, 1)
	assert.Equal(t, 10, got.Summaries[0].Successful)
}

func TestStoreGetMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.Get("nope")
	assert.Error(t, err)
}

func TestStoreListNewestFirst(t *testing.T) {
	store := openStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(record("old", base)))
	require.NoError(t, store.Save(record("mid", base.Add(time.Hour))))
	require.NoError(t, store.Save(record("new", base.Add(2*time.Hour))))

	records := store.List(0)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "mid", records[1].ID)
	assert.Equal(t, "old", records[2].ID)

	limited := store.List(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "new", limited[0].ID)
}
