package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_MissingFile(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "missing.json"))

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestHistoryStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "conversation_history.json")
	store := NewHistoryStore(path)
	ctx := context.Background()

	entries := []core.HistoryEntry{
		{
			ID:         "1",
			Question:   "Quel est le capital minimum d'une SA ?",
			Answer:     "300.000 dirhams selon l'article 6.",
			Sources:    []core.ScoredSource{{Doc: "Loi 17-95", Article: "6", Content: "Le capital...", SourceFile: "sa.csv", Relevance: 0.8}},
			Confidence: 0.9,
			Timestamp:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
	require.NoError(t, store.Save(ctx, entries))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "Quel est le capital minimum d'une SA ?"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	// No temporary files are left behind.
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestHistoryStore_Overwrite(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "h.json"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []core.HistoryEntry{{ID: "1"}, {ID: "2"}}))
	require.NoError(t, store.Save(ctx, []core.HistoryEntry{}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestHistoryStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0644))

	_, err := NewHistoryStore(path).Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestNewHistoryStore_DefaultPath(t *testing.T) {
	store := NewHistoryStore("").(*HistoryStore)
	assert.Equal(t, DefaultPath, store.Path())
}
