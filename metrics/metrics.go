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

// Package metrics exposes Prometheus instrumentation for the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Answer paths, used as the "path" label.
const (
	PathGreeting  = "greeting"
	PathCache     = "cache"
	PathAgents    = "agents"
	PathClassical = "classical"
	PathNoResults = "no_results"
	PathError     = "error"
)

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

var (
	QuestionsAnswered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adala_questions_answered_total",
			Help: "Total number of questions answered, by answer path",
		},
		[]string{"path"},
	)

	AnswerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adala_answer_duration_seconds",
			Help:    "Time taken to answer a question in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900, 3600},
		},
		[]string{"path"},
	)

	AnswerConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adala_answer_confidence",
			Help:    "Confidence score of returned answers",
			Buckets: confidenceBuckets,
		},
		[]string{"path"},
	)

	QuestionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adala_questions_in_flight",
			Help: "Number of questions being answered",
		},
	)

	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adala_agent_runs_total",
			Help: "Total number of multi-agent runs, by outcome",
		},
		[]string{"outcome"},
	)

	ValidationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adala_validation_runs_total",
			Help: "Total number of cloud validation passes, by outcome",
		},
		[]string{"outcome"},
	)

	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adala_searches_total",
			Help: "Total number of similarity searches, by scope",
		},
		[]string{"scope"},
	)

	SearchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adala_search_failures_total",
			Help: "Total number of similarity searches that failed",
		},
	)

	DegradedSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adala_degraded_searches_total",
			Help: "Total number of searches run on fallback embeddings",
		},
	)

	SearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adala_search_candidates",
			Help:    "Number of candidates returned by the vector index per search",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	FilteredCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adala_search_filtered_candidates_total",
			Help: "Total number of candidates dropped for scoring below the minimum relevance",
		},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adala_search_results",
			Help:    "Number of sources returned per search",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	Reloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adala_reloads_total",
			Help: "Total number of corpus reloads, by outcome",
		},
		[]string{"outcome"},
	)

	ReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adala_reload_duration_seconds",
			Help:    "Duration of corpus reloads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	IndexedDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adala_indexed_documents",
			Help: "Number of documents in the vector index",
		},
	)

	HistoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adala_history_entries",
			Help: "Number of entries in the conversation history",
		},
	)
)

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
