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

// Package storage provides the storage abstraction layer for adala.
//
// This package defines the interfaces that decouple persistence from the
// question answering logic. Two concerns are covered:
//
//   - VectorIndex: the indexed legal corpus, queried by nearest neighbor
//   - HistoryStore: the bounded conversation log
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interface types to enforce
// abstraction and let backends be swapped from configuration:
//
//	index, err := badger.NewIndex("/path/to/index_db")     // storage.VectorIndex
//	index, err := sqlitevec.NewIndex("/path/to/index.db")  // storage.VectorIndex
//	store := jsonfile.NewHistoryStore("conversation_history.json") // storage.HistoryStore
//
// Internal constructors (newIndex, OpenBackend, ...) may return concrete types
// since they're only used within the implementation package.
//
// # Distances
//
// VectorIndex.Query returns raw distances in whatever metric the backend uses.
// Smaller is closer. Turning distances into relevance scores is the job of the
// search package, so every backend is interpreted the same way.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
// Pass context.Background() for operations without specific timeout requirements.
package storage
