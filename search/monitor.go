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

package search

import "github.com/poiesic/adala/core"

// SearchMonitor receives callbacks at each stage of a search.
// Implementations must be safe for concurrent use; specialists search in parallel.
type SearchMonitor interface {
	Start(query, partition string)
	AfterEmbedding(dim int, degraded bool)
	AfterIndexQuery(candidates []core.Candidate)
	BelowThreshold(candidate core.Candidate, relevance float64)
	Failed(err error)
	Finish(results []core.ScoredSource)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                          {}
func (n *noopMonitor) AfterEmbedding(_ int, _ bool)               {}
func (n *noopMonitor) AfterIndexQuery(_ []core.Candidate)         {}
func (n *noopMonitor) BelowThreshold(_ core.Candidate, _ float64) {}
func (n *noopMonitor) Failed(_ error)                             {}
func (n *noopMonitor) Finish(_ []core.ScoredSource)               {}
