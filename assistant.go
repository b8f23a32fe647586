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

// Package adala is a legal question answering assistant over a corpus of
// Moroccan legal texts. The Assistant owns every long-lived resource: the
// vector index, the model clients, the conversation log and the answer
// pipeline built on top of them.
package adala

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/adala/agents"
	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/ai/openai"
	"github.com/poiesic/adala/config"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/generation"
	"github.com/poiesic/adala/history"
	"github.com/poiesic/adala/ingestion"
	"github.com/poiesic/adala/metrics"
	"github.com/poiesic/adala/pipeline"
	"github.com/poiesic/adala/search"
	"github.com/poiesic/adala/storage"
	"github.com/poiesic/adala/storage/badger"
	"github.com/poiesic/adala/storage/jsonfile"
	"github.com/poiesic/adala/storage/redis"
	"github.com/poiesic/adala/storage/sqlitevec"
)

// Assistant answers legal questions over an indexed CSV corpus.
type Assistant struct {
	cfg         *config.Config
	index       storage.VectorIndex
	provider    ai.AIProvider
	engine      *search.Engine
	generator   *generation.Backend
	history     *history.Cache
	coordinator *agents.Coordinator
	pipeline    *pipeline.Pipeline
	loader      *ingestion.Loader
	progress    io.Writer
	logger      *slog.Logger

	// mu keeps retrieval off the index while a reload rebuilds it.
	// Generation runs outside it.
	mu          sync.RWMutex
	corpus      *ingestion.Corpus
	initialized atomic.Bool

	watchMu sync.Mutex
	watcher *ingestion.Watcher
}

// AssistantOption configures an Assistant.
type AssistantOption func(*assistantOptions)

type assistantOptions struct {
	provider     ai.AIProvider
	index        storage.VectorIndex
	historyStore storage.HistoryStore
	progress     io.Writer
	logger       *slog.Logger
}

// WithProvider supplies the model services instead of building OpenAI-compatible
// clients from the configuration.
func WithProvider(provider ai.AIProvider) AssistantOption {
	return func(o *assistantOptions) {
		o.provider = provider
	}
}

// WithIndex supplies the vector index instead of opening the configured one.
// The Assistant takes ownership of it.
func WithIndex(index storage.VectorIndex) AssistantOption {
	return func(o *assistantOptions) {
		o.index = index
	}
}

// WithHistoryStore supplies the conversation log store instead of opening
// the configured one. The Assistant takes ownership of it.
func WithHistoryStore(store storage.HistoryStore) AssistantOption {
	return func(o *assistantOptions) {
		o.historyStore = store
	}
}

// WithProgress reports indexing progress to w.
func WithProgress(w io.Writer) AssistantOption {
	return func(o *assistantOptions) {
		o.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) AssistantOption {
	return func(o *assistantOptions) {
		o.logger = logger
	}
}

// NewAssistant opens the index and the conversation log and wires the answer
// pipeline. The assistant refuses questions until Initialize or Open succeeds.
func NewAssistant(ctx context.Context, cfg *config.Config, opts ...AssistantOption) (*Assistant, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	options := &assistantOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Assistant{
		cfg:      cfg,
		progress: options.progress,
		logger:   logger.With("component", "assistant"),
		loader:   ingestion.NewLoader(cfg.Data.Dir, logger),
	}

	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	var err error
	a.index = options.index
	if a.index == nil {
		if a.index, err = openIndex(cfg); err != nil {
			return nil, err
		}
	}

	a.provider = options.provider
	if a.provider == nil {
		if a.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return nil, err
		}
	}

	a.engine, err = search.NewEngine(ctx, a.index, a.provider.Embedder(),
		search.WithLogger(logger),
		search.WithMonitor(metrics.NewSearchMonitor()),
		search.WithEmbeddingModel(cfg.Services.Ollama.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	a.generator, err = generation.NewBackend(a.provider.Generator(), a.provider.Validator(), generation.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a.history, err = openHistory(ctx, cfg, options.historyStore, logger)
	if err != nil {
		return nil, err
	}
	metrics.HistoryEntries.Set(float64(a.history.Count()))

	retriever := &guardedRetriever{engine: a.engine, mu: &a.mu}
	pipelineOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.Agents.Enabled {
		coordinator, err := agents.NewCoordinator(retriever, a.provider.Agents(),
			agents.WithSettings(cfg.AgentSettings()),
			agents.WithLogger(logger),
		)
		if err != nil {
			a.logger.Warn("multi-agent path disabled, answering on the classical path", "err", err)
		} else {
			a.coordinator = coordinator
			pipelineOpts = append(pipelineOpts, pipeline.WithAgents(coordinator))
		}
	}

	a.pipeline, err = pipeline.New(retriever, a.generator, a.history, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func openIndex(cfg *config.Config) (storage.VectorIndex, error) {
	switch cfg.Index.Backend {
	case config.IndexSQLiteVec:
		return sqlitevec.NewIndex(cfg.Index.Path)
	default:
		return badger.NewIndex(cfg.Index.Path)
	}
}

// OpenHistory opens the configured conversation log without the rest of
// the assistant.
func OpenHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*history.Cache, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return openHistory(ctx, cfg, nil, logger)
}

func openHistory(ctx context.Context, cfg *config.Config, store storage.HistoryStore, logger *slog.Logger) (*history.Cache, error) {
	if store == nil {
		var err error
		if store, err = openHistoryStore(ctx, cfg); err != nil {
			return nil, err
		}
	}
	cache, err := history.New(ctx, store, history.WithLimit(cfg.History.Limit), history.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cache, nil
}

func openHistoryStore(ctx context.Context, cfg *config.Config) (storage.HistoryStore, error) {
	if cfg.History.Backend == config.HistoryRedis {
		return redis.NewHistoryStore(ctx, redis.Config{
			Address:  cfg.History.Redis.Address,
			Password: cfg.History.Redis.Password,
			DB:       cfg.History.Redis.DB,
			Key:      cfg.History.Redis.Key,
		})
	}
	return jsonfile.NewHistoryStore(cfg.History.Path), nil
}

// Close releases every resource held by the assistant.
func (a *Assistant) Close() error {
	var errs []error
	if err := a.StopWatching(); err != nil {
		errs = append(errs, err)
	}
	if a.coordinator != nil {
		a.coordinator.Release()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("error closing history store", "err", err)
			errs = append(errs, err)
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialize loads the corpus and rebuilds the index from scratch. On
// failure the assistant stays uninitialized.
func (a *Assistant) Initialize(ctx context.Context) error {
	_, err := a.rebuild(ctx)
	return err
}

// Open reuses an index built by an earlier run when it holds documents
// embedded with the current embedding model. The CSV files are read for
// statistics only.
func (a *Assistant) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	count, err := a.index.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrIndexEmpty
	}
	meta, err := a.index.LoadMeta(ctx)
	if err != nil {
		return err
	}
	if meta == nil || meta.EmbeddingModel != a.engine.EmbeddingModel() {
		return fmt.Errorf("%w: index built with %q, querying with %q",
			ingestion.ErrEmbeddingMismatch, metaModel(meta), a.engine.EmbeddingModel())
	}

	if corpus, err := a.loader.LoadAll(ctx); err != nil {
		a.logger.Warn("could not read corpus statistics", "dir", a.loader.Dir(), "err", err)
	} else {
		a.corpus = corpus
	}
	metrics.IndexedDocuments.Set(float64(count))
	a.initialized.Store(true)
	a.logger.Info("reusing existing index", "documents", count, "embedding_model", meta.EmbeddingModel)
	return nil
}

func metaModel(meta *storage.IndexMeta) string {
	if meta == nil {
		return ""
	}
	return meta.EmbeddingModel
}

// Reload re-reads the data directory and rebuilds the index. It never
// fails: errors are reported in the result message with zero documents.
func (a *Assistant) Reload(ctx context.Context) core.ReloadResult {
	start := time.Now()
	n, err := a.rebuild(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return core.ReloadResult{
			Message:            "Erreur lors du rechargement: " + err.Error(),
			DocumentsProcessed: 0,
			ProcessingTime:     elapsed.Seconds(),
			Timestamp:          time.Now(),
		}
	}
	return core.ReloadResult{
		Message:            fmt.Sprintf("Données rechargées avec succès. %d documents traités.", n),
		DocumentsProcessed: n,
		ProcessingTime:     elapsed.Seconds(),
		Timestamp:          time.Now(),
	}
}

func (a *Assistant) rebuild(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() {
		metrics.Reloads.WithLabelValues(metrics.Outcome(err)).Inc()
		metrics.ReloadDuration.Observe(time.Since(start).Seconds())
	}()

	a.logger.Info("loading corpus", "dir", a.loader.Dir())
	corpus, err := a.loader.LoadAll(ctx)
	if err != nil {
		a.logger.Error("error loading corpus", "err", err)
		return 0, err
	}
	if len(corpus.Documents) == 0 {
		a.logger.Error("corpus is empty", "files", len(corpus.Files))
		return 0, ErrNoDocuments
	}

	indexer, err := ingestion.NewIndexer(a.index, a.engine.Embedder(),
		ingestion.WithEmbeddingModel(a.engine.EmbeddingModel(), a.engine.Degraded()),
		ingestion.WithProgress(a.progress),
		ingestion.WithLogger(a.logger),
	)
	if err != nil {
		return 0, err
	}
	defer indexer.Release()

	a.mu.Lock()
	defer a.mu.Unlock()

	n, err = indexer.Rebuild(ctx, corpus.Documents)
	if err != nil {
		// The index may be cleared or partial.
		a.corpus = nil
		a.initialized.Store(false)
		a.logger.Error("error indexing corpus", "indexed", n, "err", err)
		return 0, err
	}

	a.corpus = corpus
	a.initialized.Store(true)
	metrics.IndexedDocuments.Set(float64(n))
	a.logger.Info("corpus indexed", "documents", n, "files", len(corpus.Files), "degraded", a.engine.Degraded())
	return n, nil
}

// Initialized reports whether the assistant accepts questions.
func (a *Assistant) Initialized() bool {
	return a.initialized.Load()
}

// Ask answers a question. The only errors are core.ErrNotInitialized and
// question validation errors; every other failure is reported in the answer.
// A zero context limit uses the configured default.
func (a *Assistant) Ask(ctx context.Context, q core.Question) (*core.Answer, error) {
	if !a.Initialized() {
		return nil, core.ErrNotInitialized
	}
	if err := core.ValidateQuestion(&q); err != nil {
		return nil, err
	}
	if q.ContextLimit == 0 {
		q.ContextLimit = a.cfg.Query.ContextLimit
	}

	answer := a.pipeline.Ask(ctx, q)
	metrics.HistoryEntries.Set(float64(a.history.Count()))
	return answer, nil
}

// Search retrieves passages without generating an answer.
func (a *Assistant) Search(ctx context.Context, q search.Query) []core.ScoredSource {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine.Search(ctx, q)
}

// guardedRetriever serializes index reads against reloads. The pipeline and
// the coordinator retrieve through it, so a reload waits only for in-flight
// searches, never for generation.
type guardedRetriever struct {
	engine *search.Engine
	mu     *sync.RWMutex
}

func (g *guardedRetriever) Search(ctx context.Context, q search.Query) []core.ScoredSource {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Search(ctx, q)
}

func (g *guardedRetriever) Partitions(ctx context.Context) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Partitions(ctx)
}

// History returns the newest limit entries of the conversation log, oldest
// first. A non-positive limit returns the whole log.
func (a *Assistant) History(limit int) []core.HistoryEntry {
	return a.history.List(limit)
}

// ClearHistory empties the conversation log.
func (a *Assistant) ClearHistory(ctx context.Context) error {
	err := a.history.Clear(ctx)
	metrics.HistoryEntries.Set(float64(a.history.Count()))
	return err
}

// Status reports the assistant's health.
func (a *Assistant) Status(ctx context.Context) core.Status {
	a.mu.RLock()
	corpus := a.corpus
	a.mu.RUnlock()

	return core.Status{
		Initialized:       a.Initialized(),
		OllamaAvailable:   !a.engine.Degraded(),
		GeminiAvailable:   a.generator.ValidationEnabled(),
		AgentsEnabled:     a.pipeline.AgentsEnabled() && corpus != nil && len(corpus.Files) > 0,
		EmbeddingDegraded: a.engine.Degraded(),
		IndexStats:        a.indexStats(ctx),
		CorpusStats:       corpus.Stats(),
		HistoryCount:      a.history.Count(),
	}
}

func (a *Assistant) indexStats(ctx context.Context) core.IndexStats {
	stats := core.IndexStats{
		CollectionName: storage.CollectionName,
		EmbeddingModel: a.engine.EmbeddingModel(),
		Degraded:       a.engine.Degraded(),
	}

	count, err := a.index.Count(ctx)
	if err != nil {
		a.logger.Error("error counting indexed documents", "err", err)
	}
	stats.TotalDocuments = count

	meta, err := a.index.LoadMeta(ctx)
	if err != nil {
		a.logger.Error("error loading index metadata", "err", err)
	}
	if meta != nil {
		stats.EmbeddingModel = meta.EmbeddingModel
		stats.EmbeddingDim = meta.EmbeddingDim
		stats.Degraded = meta.Degraded
	}
	return stats
}

// Watch reloads the corpus whenever CSV files in the data directory change,
// once they have been quiet for quiet. It returns once the watcher is
// running; reloads happen in the background until ctx ends or StopWatching
// is called.
func (a *Assistant) Watch(ctx context.Context, quiet time.Duration) error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.watcher != nil {
		return nil
	}

	watcher, err := ingestion.NewWatcher(a.logger)
	if err != nil {
		return err
	}
	events, err := watcher.Watch(ctx, a.loader.Dir())
	if err != nil {
		_ = watcher.Stop()
		return err
	}
	a.watcher = watcher

	go ingestion.OnChange(ctx, events, quiet, func(ctx context.Context) {
		result := a.Reload(ctx)
		a.logger.Info("corpus changed on disk", "message", result.Message, "documents", result.DocumentsProcessed)
	})
	return nil
}

// StopWatching stops the data directory watcher, if any.
func (a *Assistant) StopWatching() error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.watcher == nil {
		return nil
	}
	err := a.watcher.Stop()
	a.watcher = nil
	return err
}
