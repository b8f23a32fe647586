package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/poiesic/adala/ai/mock"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisEmbedder maps known texts to fixed 2-d vectors.
func axisEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return []float32{1, 0}, nil
	}
	return m
}

func newTestIndex(t *testing.T) *badger.Index {
	t.Helper()
	index, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func addDoc(t *testing.T, index *badger.Index, sourceFile string, seq int, content string, vector []float32) {
	t.Helper()
	err := index.AddDocuments(context.Background(), &core.IndexedDocument{
		Key:      core.DocumentKey(sourceFile, seq, content),
		Document: core.Document{Doc: "Code " + sourceFile, Content: content, SourceFile: sourceFile},
		Vector:   vector,
	})
	require.NoError(t, err)
}

type recordingMonitor struct {
	mu       sync.Mutex
	started  int
	failures []error
	below    int
	finished [][]core.ScoredSource
}

func (r *recordingMonitor) Start(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}
func (r *recordingMonitor) AfterEmbedding(_ int, _ bool)       {}
func (r *recordingMonitor) AfterIndexQuery(_ []core.Candidate) {}
func (r *recordingMonitor) BelowThreshold(_ core.Candidate, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.below++
}
func (r *recordingMonitor) Failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}
func (r *recordingMonitor) Finish(results []core.ScoredSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, results)
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)

	t.Run("nil index", func(t *testing.T) {
		_, err := NewEngine(ctx, nil, mock.NewMockEmbedder())
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("healthy embedder", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		engine, err := NewEngine(ctx, index, embedder, WithEmbeddingModel("nomic-embed-text"), WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.False(t, engine.Degraded())
		assert.Equal(t, "nomic-embed-text", engine.EmbeddingModel())
		assert.Same(t, embedder, engine.Embedder())
		assert.Equal(t, 1, embedder.CallCount(), "startup probe")
	})

	t.Run("nil embedder degrades", func(t *testing.T) {
		engine, err := NewEngine(ctx, index, nil, WithLogger(nil))
		require.NoError(t, err)
		assert.True(t, engine.Degraded())
		assert.Equal(t, FallbackModelName, engine.EmbeddingModel())

		vec, err := engine.Embedder().EmbedText(ctx, "question")
		require.NoError(t, err)
		assert.Len(t, vec, FallbackDimension)
	})

	t.Run("failing probe degrades", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
			return nil, errors.New("connection refused")
		}
		engine, err := NewEngine(ctx, index, embedder, WithEmbeddingModel("nomic-embed-text"))
		require.NoError(t, err)
		assert.True(t, engine.Degraded())
		assert.Equal(t, FallbackModelName, engine.EmbeddingModel())
	})
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)

	addDoc(t, index, "commerce.csv", 0, "exact", []float32{1, 0})
	addDoc(t, index, "commerce.csv", 1, "proche", []float32{0.95, 0.3})
	addDoc(t, index, "travail.csv", 0, "orthogonal", []float32{0, 1})
	addDoc(t, index, "travail.csv", 1, "opposé", []float32{-1, 0})

	engine, err := NewEngine(ctx, index, axisEmbedder(nil))
	require.NoError(t, err)

	t.Run("ordered best first with normalized scores", func(t *testing.T) {
		results := engine.Search(ctx, Query{Text: "q", Limit: 10})
		require.Len(t, results, 4)
		assert.Equal(t, "exact", results[0].Content)
		assert.InDelta(t, 1.0, results[0].Relevance, 1e-6)
		assert.Equal(t, "proche", results[1].Content)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Relevance, 0.0)
			assert.LessOrEqual(t, r.Relevance, 1.0)
		}
		// Cosine distance 2 maps to 1/3.
		assert.InDelta(t, 1.0/3.0, results[3].Relevance, 1e-6)
	})

	t.Run("min score drops results", func(t *testing.T) {
		monitor := &recordingMonitor{}
		results := engine.SearchWithMonitor(ctx, Query{Text: "q", Limit: 10, MinScore: 0.5}, monitor)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Relevance, 0.5)
		}
		assert.Equal(t, 2, monitor.below)
	})

	t.Run("limit applies", func(t *testing.T) {
		results := engine.Search(ctx, Query{Text: "q", Limit: 1})
		require.Len(t, results, 1)
		assert.Equal(t, "exact", results[0].Content)
	})

	t.Run("partition filter applies before ranking", func(t *testing.T) {
		results := engine.Search(ctx, Query{Text: "q", Partition: "travail.csv", Limit: 1})
		require.Len(t, results, 1)
		assert.Equal(t, "travail.csv", results[0].SourceFile)
		assert.Equal(t, "orthogonal", results[0].Content)
	})

	t.Run("zero limit", func(t *testing.T) {
		assert.Empty(t, engine.Search(ctx, Query{Text: "q"}))
	})

	t.Run("partitions", func(t *testing.T) {
		assert.Equal(t, []string{"commerce.csv", "travail.csv"}, engine.Partitions(ctx))
	})
}

func TestEngine_SearchFailureReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	addDoc(t, index, "a.csv", 0, "x", []float32{1, 0})

	embedder := axisEmbedder(nil)
	monitor := &recordingMonitor{}
	engine, err := NewEngine(ctx, index, embedder, WithMonitor(monitor))
	require.NoError(t, err)

	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("timeout")
	}

	results := engine.Search(ctx, Query{Text: "q", Limit: 3})
	assert.NotNil(t, results)
	assert.Empty(t, results)
	require.Len(t, monitor.failures, 1)
	assert.ErrorIs(t, monitor.failures[0], ErrRetrieval)
	assert.Equal(t, 1, monitor.started)
	assert.Len(t, monitor.finished, 1)
}

func TestEngine_DimensionMismatchReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	addDoc(t, index, "a.csv", 0, "x", []float32{1, 0})

	// Degraded engine queries with 384-d vectors against a 2-d index.
	engine, err := NewEngine(ctx, index, nil)
	require.NoError(t, err)

	assert.Empty(t, engine.Search(ctx, Query{Text: "q", Limit: 3}))
}

func TestEngine_DegradedEndToEnd(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	engine, err := NewEngine(ctx, index, nil)
	require.NoError(t, err)

	texts := []string{
		"Le capital social minimum de la société anonyme",
		"La durée de la période d'essai du salarié",
	}
	vectors, err := engine.Embedder().EmbedTexts(ctx, texts)
	require.NoError(t, err)
	for i, text := range texts {
		addDoc(t, index, "corpus.csv", i, text, vectors[i])
	}

	results := engine.Search(ctx, Query{Text: "capital minimum société anonyme", Limit: 2})
	require.NotEmpty(t, results)
	assert.Equal(t, texts[0], results[0].Content)
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"identical", 0, 1},
		{"close", 0.25, 0.75},
		{"boundary one", 1, 0},
		{"unbounded", 3, 0.25},
		{"just above one", 1.5, 0.4},
		{"negative clamps", -0.1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Relevance(tt.distance), 1e-9)
		})
	}
}
