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

// Package search provides similarity search over the indexed legal corpus.
//
// The Engine embeds a query, asks a storage.VectorIndex for its nearest
// neighbors and turns the raw distances into relevance scores in [0, 1]:
//
//   - a distance in [0, 1] maps to 1 - distance
//   - any other distance maps to 1 / (1 + distance)
//
// Results below the caller's minimum score are dropped. An optional partition
// (a source file name) restricts candidates before ranking.
//
// # Degraded Mode
//
// When no embedding service is configured, or the service fails its startup
// probe, the Engine switches to a deterministic hashing embedder. Search keeps
// working with reduced fidelity and Degraded reports true so the condition is
// visible in status output.
//
// # Failure Handling
//
// Search never returns an error. Retrieval failures are logged, reported to
// the SearchMonitor and yield an empty result set.
package search
