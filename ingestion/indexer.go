// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

const (
	// DefaultBatchSize is the number of documents embedded per call.
	DefaultBatchSize = 100

	// DefaultMaxRetries is the number of attempts per batch.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the delay before the first retry.
	DefaultRetryBaseDelay = time.Second
)

// Indexer embeds documents and writes them to a vector index.
type Indexer struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	embeddingModel string
	degraded       bool
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
	pool           *ants.Pool
	progress       io.Writer
	logger         *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithBatchSize sets the number of documents embedded per call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		ix.batchSize = size
		return nil
	}
}

// WithRetry sets how often and how patiently failed batches are retried.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(ix *Indexer) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		ix.maxRetries = maxAttempts
		ix.retryBaseDelay = baseDelay
		return nil
	}
}

// WithPoolSize sets the number of batches processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		ix.pool = pool
		return nil
	}
}

// WithProgress reports progress to w.
func WithProgress(w io.Writer) Option {
	return func(ix *Indexer) error {
		ix.progress = w
		return nil
	}
}

// WithEmbeddingModel records the embedding model in the index metadata.
func WithEmbeddingModel(name string, degraded bool) Option {
	return func(ix *Indexer) error {
		ix.embeddingModel = name
		ix.degraded = degraded
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// NewIndexer creates an Indexer. Call Release when done with it.
func NewIndexer(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Indexer, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		index:          index,
		embedder:       embedder,
		batchSize:      DefaultBatchSize,
		maxRetries:     DefaultMaxRetries,
		retryBaseDelay: DefaultRetryBaseDelay,
		pool:           pool,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(ix); optErr != nil {
			ix.Release()
			return nil, optErr
		}
	}
	ix.logger = ix.logger.With("component", "indexer")
	return ix, nil
}

// Release releases the worker pool.
// The indexer should not be used after calling Release.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}

// Rebuild clears the index and indexes docs.
func (ix *Indexer) Rebuild(ctx context.Context, docs []core.Document) (int, error) {
	if err := ix.index.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}
	return ix.Index(ctx, docs)
}

// Index embeds docs in batches and adds them to the index. Keys derive from
// each document's source file, position and content, so indexing the same
// corpus twice overwrites rather than duplicates. It returns the number of
// documents written; on failure the index may hold a subset of docs.
func (ix *Indexer) Index(ctx context.Context, docs []core.Document) (int, error) {
	if len(docs) == 0 {
		ix.logger.Warn("no documents to index")
		return 0, nil
	}

	items := make([]keyedDocument, 0, len(docs))
	for i, doc := range docs {
		if err := core.ValidateDocument(&doc); err != nil {
			ix.logger.Warn("skipping invalid document", "source_file", doc.SourceFile, "position", i, "err", err)
			continue
		}
		items = append(items, keyedDocument{key: core.DocumentKey(doc.SourceFile, i, doc.Content), doc: doc})
	}

	proc := &batchProcessor{
		index:          ix.index,
		embedder:       ix.embedder,
		maxRetries:     ix.maxRetries,
		retryBaseDelay: ix.retryBaseDelay,
	}

	batches := (len(items) + ix.batchSize - 1) / ix.batchSize
	ix.logger.Info("indexing documents", "documents", len(items), "batches", batches)

	tracker := NewProgressTracker(ix.progress, len(items), ix.batchSize)
	tracker.Start()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		dim  int
	)
	for start := 0; start < len(items); start += ix.batchSize {
		batch := items[start:min(start+ix.batchSize, len(items))]
		number := start/ix.batchSize + 1

		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			d, err := proc.process(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ix.logger.Error("error indexing batch", "batch", number, "batches", batches, "err", err)
				errs = append(errs, fmt.Errorf("batch %d: %w", number, err))
				return
			}
			dim = d
			tracker.Increment(len(batch))
			ix.logger.Debug("batch indexed", "batch", number, "batches", batches)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("batch %d: %w", number, err))
			mu.Unlock()
		}
	}
	wg.Wait()
	tracker.Finish()

	indexed := tracker.Current()
	if len(errs) > 0 {
		return indexed, errors.Join(errs...)
	}

	meta := &storage.IndexMeta{
		EmbeddingModel: ix.embeddingModel,
		EmbeddingDim:   dim,
		Degraded:       ix.degraded,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := ix.index.SaveMeta(ctx, meta); err != nil {
		return indexed, fmt.Errorf("saving index metadata: %w", err)
	}

	ix.logger.Info("documents indexed", "documents", indexed, "elapsed", tracker.Elapsed())
	return indexed, nil
}
