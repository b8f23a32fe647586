package sqlitevec

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := newIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func indexedDoc(sourceFile string, seq int, content string, vector []float32) *core.IndexedDocument {
	return &core.IndexedDocument{
		Key: core.DocumentKey(sourceFile, seq, content),
		Document: core.Document{
			Doc:        "Code",
			Article:    fmt.Sprint(seq),
			Content:    content,
			SourceFile: sourceFile,
		},
		Text:   content,
		Vector: vector,
	}
}

func TestIndex_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.Query(context.Background(), []float32{1, 0}, 3, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_AddQueryCount(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx,
		indexedDoc("a.csv", 0, "identique", []float32{1, 0}),
		indexedDoc("a.csv", 1, "loin", []float32{0, 1}),
		indexedDoc("b.csv", 0, "proche", []float32{0.9, 0.1}),
	))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := idx.Query(ctx, []float32{1, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "identique", results[0].Document.Content)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, "proche", results[1].Document.Content)

	// Upsert keeps the count stable.
	require.NoError(t, idx.AddDocuments(ctx, indexedDoc("a.csv", 0, "identique", []float32{1, 0})))
	count, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIndex_PartitionGrowsCandidatePool(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, idx.AddDocuments(ctx, indexedDoc("a.csv", i, fmt.Sprintf("a%d", i), []float32{1, 0})))
	}
	require.NoError(t, idx.AddDocuments(ctx, indexedDoc("b.csv", 0, "b0", []float32{0, 1})))

	results, err := idx.Query(ctx, []float32{1, 0}, 1, "b.csv")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b0", results[0].Document.Content)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, indexedDoc("a.csv", 0, "x", []float32{1, 0})))

	err := idx.AddDocuments(ctx, indexedDoc("a.csv", 1, "y", []float32{1, 0, 0}))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	_, err = idx.Query(ctx, []float32{1, 0, 0}, 1, "")
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestIndex_ClearPartitionsMeta(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx,
		indexedDoc("travail.csv", 0, "x", []float32{1, 0}),
		indexedDoc("commerce.csv", 0, "y", []float32{0, 1}),
	))
	require.NoError(t, idx.SaveMeta(ctx, &storage.IndexMeta{EmbeddingModel: "random-fallback", EmbeddingDim: 2, Degraded: true}))

	partitions, err := idx.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"commerce.csv", "travail.csv"}, partitions)

	meta, err := idx.LoadMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, meta.Degraded)

	require.NoError(t, idx.Clear(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	meta, err = idx.LoadMeta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	// A different dimension is accepted after a clear.
	require.NoError(t, idx.AddDocuments(ctx, indexedDoc("a.csv", 0, "z", []float32{1, 0, 0})))
}

func TestNewIndex_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := NewIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.AddDocuments(ctx, indexedDoc("a.csv", 0, "x", []float32{1, 0})))
	require.NoError(t, idx.Close())

	idx, err = NewIndex(path)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Query(ctx, []float32{1, 0}, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestIndex_InvalidQuery(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Query(context.Background(), []float32{1}, 0, "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}
