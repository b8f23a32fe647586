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

// Package jsonfile stores the conversation log as a single JSON document.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

// DefaultPath is the history file used when none is configured.
const DefaultPath = "conversation_history.json"

// HistoryStore implements storage.HistoryStore on a local JSON file.
// Each Save rewrites the file through a temporary file and a rename.
type HistoryStore struct {
	path string
}

var _ storage.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore creates a store backed by the file at path.
// The file is not touched until the first Load or Save.
//
// Returns storage.HistoryStore interface to enforce abstraction.
func NewHistoryStore(path string) storage.HistoryStore {
	if path == "" {
		path = DefaultPath
	}
	return &HistoryStore{path: path}
}

// Path returns the file the store writes to.
func (s *HistoryStore) Path() string {
	return s.path
}

// Load reads the log. A missing file yields an empty log.
func (s *HistoryStore) Load(ctx context.Context) ([]core.HistoryEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []core.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalHistory(data)
}

// Save rewrites the log.
func (s *HistoryStore) Save(ctx context.Context, entries []core.HistoryEntry) error {
	data, err := storage.MarshalHistory(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Close is a no-op; the file is not held open.
func (s *HistoryStore) Close() error {
	return nil
}
