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

// Package history keeps the bounded log of answered questions and serves it
// as an exact-match answer cache.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

const (
	// DefaultLimit is the number of entries kept when no limit is configured.
	DefaultLimit = 100

	// sourceContentLimit bounds the passage text stored with each entry.
	sourceContentLimit = 200
)

var (
	// ErrStoreRequired indicates the cache was built without a store.
	ErrStoreRequired = errors.New("history store is required")

	// ErrPersistence indicates the log could not be written.
	ErrPersistence = errors.New("history persistence failed")
)

// Cache is the conversation log. It is safe for concurrent use; every
// mutation and the write that follows it happen under one lock.
type Cache struct {
	mu      sync.Mutex
	store   storage.HistoryStore
	entries []core.HistoryEntry
	limit   int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLimit sets the maximum number of entries kept.
// Non-positive values select DefaultLimit.
func WithLimit(limit int) Option {
	return func(c *Cache) {
		if limit <= 0 {
			limit = DefaultLimit
		}
		c.limit = limit
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Cache and loads the log persisted in store. A load failure
// is logged and leaves the cache empty.
func New(ctx context.Context, store storage.HistoryStore, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	c := &Cache{
		store:  store,
		limit:  DefaultLimit,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "history")

	entries, err := store.Load(ctx)
	if err != nil {
		c.logger.Error("error loading conversation history, starting empty", "err", err)
		entries = nil
	}
	if len(entries) > c.limit {
		entries = entries[len(entries)-c.limit:]
	}
	c.entries = entries
	c.logger.Info("conversation history loaded", "entries", len(c.entries))
	return c, nil
}

// Append records an answered question and rewrites the persisted log. The
// entry is kept in memory even when the write fails; the failure is returned
// wrapped in ErrPersistence.
func (c *Cache) Append(ctx context.Context, question string, answer *core.Answer) (core.HistoryEntry, error) {
	entry := core.HistoryEntry{
		ID:         uuid.NewString(),
		Question:   question,
		Answer:     answer.Text,
		Sources:    truncateSources(answer.Sources),
		Confidence: answer.Confidence,
		Timestamp:  answer.Timestamp,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, entry)
	if over := len(c.entries) - c.limit; over > 0 {
		c.entries = append([]core.HistoryEntry(nil), c.entries[over:]...)
	}

	if err := c.store.Save(ctx, c.entries); err != nil {
		return entry, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return entry, nil
}

// Lookup returns the most recent answer recorded for question. Questions
// match when equal after trimming and lower-casing. A hit carries a fresh
// timestamp and zero processing time.
func (c *Cache) Lookup(question string) (*core.Answer, bool) {
	key := core.NormalizeQuestion(question)

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.entries) - 1; i >= 0; i-- {
		entry := c.entries[i]
		if core.NormalizeQuestion(entry.Question) != key {
			continue
		}
		return &core.Answer{
			Text:           entry.Answer,
			Sources:        append([]core.ScoredSource{}, entry.Sources...),
			Confidence:     entry.Confidence,
			ProcessingTime: 0,
			Timestamp:      c.now(),
		}, true
	}
	return nil, false
}

// List returns the newest limit entries, oldest first.
// A non-positive limit returns every entry.
func (c *Cache) List(limit int) []core.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(c.entries) {
		start = len(c.entries) - limit
	}
	return append([]core.HistoryEntry{}, c.entries[start:]...)
}

// Count returns the number of entries.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the log and persists the empty log.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	if err := c.store.Save(ctx, []core.HistoryEntry{}); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func truncateSources(sources []core.ScoredSource) []core.ScoredSource {
	out := make([]core.ScoredSource, len(sources))
	for i, src := range sources {
		src.Content = core.Truncate(src.Content, sourceContentLimit)
		out[i] = src
	}
	return out
}
