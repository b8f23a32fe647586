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

// Package redis stores the conversation log under a single Redis key, letting
// several assistant instances share one history.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the key holding the log when none is configured.
const DefaultKey = "adala:conversation_history"

// Config describes the Redis connection.
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// HistoryStore implements storage.HistoryStore on Redis.
type HistoryStore struct {
	client *redis.Client
	key    string
}

var _ storage.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore connects to Redis and verifies the connection.
//
// Returns storage.HistoryStore interface to enforce abstraction.
func NewHistoryStore(ctx context.Context, cfg Config) (storage.HistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewHistoryStoreWithClient(client, cfg.Key), nil
}

// NewHistoryStoreWithClient wraps an existing client. The store takes ownership of it.
func NewHistoryStoreWithClient(client *redis.Client, key string) *HistoryStore {
	if key == "" {
		key = DefaultKey
	}
	return &HistoryStore{client: client, key: key}
}

// Load reads the log. A missing key yields an empty log.
func (s *HistoryStore) Load(ctx context.Context) ([]core.HistoryEntry, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []core.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalHistory(data)
}

// Save replaces the log.
func (s *HistoryStore) Save(ctx context.Context, entries []core.HistoryEntry) error {
	data, err := storage.MarshalHistory(entries)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// Close closes the Redis connection.
func (s *HistoryStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
