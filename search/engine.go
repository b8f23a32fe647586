package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

// probeText is embedded once at startup to check the embedding service.
const probeText = "test"

// Query describes one similarity search.
type Query struct {
	Text      string
	Partition string  // optional source file restriction
	Limit     int     // maximum number of results
	MinScore  float64 // results with a lower relevance are dropped
}

// Engine runs similarity searches against a vector index.
type Engine struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	embeddingModel string
	degraded       bool
	monitor        SearchMonitor
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithMonitor sets the monitor used when Search is called without one.
func WithMonitor(monitor SearchMonitor) Option {
	return func(e *Engine) error {
		e.monitor = monitor
		return nil
	}
}

// WithEmbeddingModel records the name of the embedding model for statistics.
func WithEmbeddingModel(name string) Option {
	return func(e *Engine) error {
		e.embeddingModel = name
		return nil
	}
}

// NewEngine creates a search engine. embedder may be nil, in which case the
// engine runs degraded. Otherwise the embedder is probed once; a failing
// probe also switches the engine to degraded mode.
func NewEngine(ctx context.Context, index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}

	e := &Engine{
		index:    index,
		embedder: embedder,
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")

	if e.embedder == nil {
		e.logger.Warn("no embedding service configured, using degraded fallback embeddings", "dim", FallbackDimension)
		e.useFallback()
		return e, nil
	}
	if _, err := e.embedder.EmbedText(ctx, probeText); err != nil {
		e.logger.Warn("embedding service probe failed, using degraded fallback embeddings",
			"dim", FallbackDimension, "err", err)
		e.useFallback()
	}
	return e, nil
}

func (e *Engine) useFallback() {
	e.embedder = NewFallbackEmbedder()
	e.embeddingModel = FallbackModelName
	e.degraded = true
}

// Embedder returns the embedder the engine queries with. Documents must be
// indexed with the same embedder to share its vector space.
func (e *Engine) Embedder() ai.Embedder {
	return e.embedder
}

// Degraded reports whether the engine runs on fallback embeddings.
func (e *Engine) Degraded() bool {
	return e.degraded
}

// EmbeddingModel names the model producing query vectors.
func (e *Engine) EmbeddingModel() string {
	return e.embeddingModel
}

// Index returns the underlying vector index.
func (e *Engine) Index() storage.VectorIndex {
	return e.index
}

// Partitions lists the indexed source files. Errors yield an empty list.
func (e *Engine) Partitions(ctx context.Context) []string {
	partitions, err := e.index.Partitions(ctx)
	if err != nil {
		e.logger.Error("error listing partitions", "err", err)
		return nil
	}
	return partitions
}

// Search returns the passages relevant to q, best match first.
// It never fails: retrieval errors are logged and produce an empty result.
func (e *Engine) Search(ctx context.Context, q Query) []core.ScoredSource {
	return e.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor is Search with per-call monitoring.
// A nil monitor falls back to the engine's monitor.
func (e *Engine) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) []core.ScoredSource {
	if monitor == nil {
		monitor = e.monitor
	}
	monitor.Start(q.Text, q.Partition)

	results, err := e.search(ctx, q, monitor)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRetrieval, err)
		e.logger.Error("error searching documents", "partition", q.Partition, "err", err)
		monitor.Failed(err)
		results = []core.ScoredSource{}
	}

	monitor.Finish(results)
	return results
}

func (e *Engine) search(ctx context.Context, q Query, monitor SearchMonitor) ([]core.ScoredSource, error) {
	if q.Limit <= 0 {
		return []core.ScoredSource{}, nil
	}

	vector, err := e.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	monitor.AfterEmbedding(len(vector), e.degraded)

	candidates, err := e.index.Query(ctx, vector, q.Limit, q.Partition)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	monitor.AfterIndexQuery(candidates)

	results := make([]core.ScoredSource, 0, len(candidates))
	for _, c := range candidates {
		relevance := Relevance(c.Distance)
		if relevance < q.MinScore {
			monitor.BelowThreshold(c, relevance)
			continue
		}
		results = append(results, core.NewScoredSource(c.Document, relevance))
	}

	e.logger.Debug("search complete",
		"partition", q.Partition,
		"candidates", len(candidates),
		"results", len(results),
		"min_score", q.MinScore)
	return results, nil
}

// Relevance converts a raw index distance into a score in [0, 1].
// Distances in [0, 1] map to 1 - d; larger distances map to 1 / (1 + d).
func Relevance(distance float64) float64 {
	switch {
	case math.IsNaN(distance):
		return 0
	case distance < 0:
		return 1
	case distance <= 1:
		return math.Max(0, 1-distance)
	default:
		return 1 / (1 + distance)
	}
}
