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
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is how long the data directory must stay unchanged
// before a change is reported.
const DefaultQuietPeriod = 2 * time.Second

// FileOperation is the kind of change seen on a corpus file.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// FileEvent is a change to one corpus file.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// Watcher reports changes to the CSV files of a directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher creates a Watcher. A nil logger selects slog.Default().
func NewWatcher(logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{watcher: w, logger: logger.With("component", "watcher")}, nil
}

// Watch starts monitoring dir and emits an event per CSV change. The channel
// is closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isCSV(event.Name) {
					continue
				}

				var op FileOperation
				switch {
				case event.Has(fsnotify.Create):
					op = FileCreated
				case event.Has(fsnotify.Write):
					op = FileModified
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					op = FileDeleted
				default:
					continue
				}

				select {
				case events <- FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("error watching data directory", "dir", dir, "err", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// OnChange calls fn once events have been quiet for the given period,
// coalescing bursts of changes into one call. It returns when events is
// closed or ctx is done.
func OnChange(ctx context.Context, events <-chan FileEvent, quiet time.Duration, fn func(ctx context.Context)) {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}

	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				if pending {
					fn(ctx)
				}
				return
			}
			pending = true
			timer.Reset(quiet)
		case <-timer.C:
			if pending {
				pending = false
				fn(ctx)
			}
		}
	}
}

func isCSV(path string) bool {
	return filepath.Ext(path) == ".csv"
}
