package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func indexedDoc(sourceFile string, seq int, content string, vector []float32) *core.IndexedDocument {
	return &core.IndexedDocument{
		Key: core.DocumentKey(sourceFile, seq, content),
		Document: core.Document{
			Doc:        "Loi " + sourceFile,
			Content:    content,
			SourceFile: sourceFile,
		},
		Text:   content,
		Vector: vector,
	}
}

func TestIndex_AddAndCount(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = index.AddDocuments(ctx,
		indexedDoc("a.csv", 0, "premier", []float32{1, 0}),
		indexedDoc("a.csv", 1, "second", []float32{0, 1}),
		indexedDoc("b.csv", 0, "troisième", []float32{1, 1}),
	)
	require.NoError(t, err)

	count, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Re-adding the same key replaces the document.
	require.NoError(t, index.AddDocuments(ctx, indexedDoc("a.csv", 0, "premier", []float32{1, 0})))
	count, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIndex_AddRejectsInvalidDocument(t *testing.T) {
	index := newTestIndex(t)

	err := index.AddDocuments(context.Background(), indexedDoc("", 0, "orphelin", []float32{1}))
	assert.ErrorIs(t, err, core.ErrEmptySourceFile)
}

func TestIndex_QueryOrdersByDistance(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.AddDocuments(ctx,
		indexedDoc("a.csv", 0, "loin", []float32{0, 1}),
		indexedDoc("a.csv", 1, "proche", []float32{1, 0.1}),
		indexedDoc("a.csv", 2, "identique", []float32{1, 0}),
	))

	results, err := index.Query(ctx, []float32{1, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "identique", results[0].Document.Content)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, "proche", results[1].Document.Content)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestIndex_QueryPartitionFilterBeforeLimit(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	// The closest documents all live in a.csv; b.csv must still yield its own.
	for i := 0; i < 5; i++ {
		require.NoError(t, index.AddDocuments(ctx, indexedDoc("a.csv", i, fmt.Sprintf("a%d", i), []float32{1, 0})))
	}
	require.NoError(t, index.AddDocuments(ctx, indexedDoc("b.csv", 0, "b0", []float32{0, 1})))

	results, err := index.Query(ctx, []float32{1, 0}, 3, "b.csv")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.csv", results[0].Document.SourceFile)

	results, err = index.Query(ctx, []float32{1, 0}, 3, "missing.csv")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_QueryInvalid(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	_, err := index.Query(ctx, []float32{1}, 0, "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = index.Query(ctx, nil, 5, "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestIndex_QueryDimensionMismatch(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.AddDocuments(ctx, indexedDoc("a.csv", 0, "x", []float32{1, 0, 0})))
	_, err := index.Query(ctx, []float32{1, 0}, 5, "")
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestIndex_Partitions(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.AddDocuments(ctx,
		indexedDoc("code_travail.csv", 0, "x", []float32{1}),
		indexedDoc("code_commerce.csv", 0, "y", []float32{1}),
		indexedDoc("code_commerce.csv", 1, "z", []float32{1}),
	))

	partitions, err := index.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"code_commerce.csv", "code_travail.csv"}, partitions)
}

func TestIndex_ClearAndMeta(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	meta, err := index.LoadMeta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	require.NoError(t, index.AddDocuments(ctx, indexedDoc("a.csv", 0, "x", []float32{1})))
	require.NoError(t, index.SaveMeta(ctx, &storage.IndexMeta{EmbeddingModel: "nomic-embed-text", EmbeddingDim: 1}))

	meta, err = index.LoadMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "nomic-embed-text", meta.EmbeddingModel)
	assert.False(t, meta.UpdatedAt.IsZero())

	require.NoError(t, index.Clear(ctx))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	partitions, err := index.Partitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, partitions)

	meta, err = index.LoadMeta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestIndex_Closed(t *testing.T) {
	index, err := NewMemoryIndex()
	require.NoError(t, err)
	require.NoError(t, index.Close())

	_, err = index.Count(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewIndex_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	index, err := NewIndex(dir)
	require.NoError(t, err)
	require.NoError(t, index.AddDocuments(ctx, indexedDoc("a.csv", 0, "persisté", []float32{1, 0})))
	require.NoError(t, index.Close())

	index, err = NewIndex(dir)
	require.NoError(t, err)
	defer index.Close()

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1.0, cosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
}
