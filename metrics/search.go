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

package metrics

import (
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/search"
)

// SearchMonitor records search metrics. It holds no state and is safe for
// concurrent use.
type SearchMonitor struct{}

var _ search.SearchMonitor = SearchMonitor{}

// NewSearchMonitor returns a monitor feeding the search metrics.
func NewSearchMonitor() search.SearchMonitor {
	return SearchMonitor{}
}

func (SearchMonitor) Start(_, partition string) {
	scope := "corpus"
	if partition != "" {
		scope = "partition"
	}
	Searches.WithLabelValues(scope).Inc()
}

func (SearchMonitor) AfterEmbedding(_ int, degraded bool) {
	if degraded {
		DegradedSearches.Inc()
	}
}

func (SearchMonitor) AfterIndexQuery(candidates []core.Candidate) {
	SearchCandidates.Observe(float64(len(candidates)))
}

func (SearchMonitor) BelowThreshold(_ core.Candidate, _ float64) {
	FilteredCandidates.Inc()
}

func (SearchMonitor) Failed(_ error) {
	SearchFailures.Inc()
}

func (SearchMonitor) Finish(results []core.ScoredSource) {
	SearchResults.Observe(float64(len(results)))
}
