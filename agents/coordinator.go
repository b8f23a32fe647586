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

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/search"
)

// DefaultVerdictConfidence is used when the supervisor omits a confidence.
const DefaultVerdictConfidence = 0.75

// minAggregatedSources is the floor on the number of sources attached to a verdict.
const minAggregatedSources = 3

// Retriever finds passages, optionally restricted to one partition.
// *search.Engine satisfies it.
type Retriever interface {
	Search(ctx context.Context, q search.Query) []core.ScoredSource
	Partitions(ctx context.Context) []string
}

// Settings tunes a Coordinator.
type Settings struct {
	// TopK is the minimum number of passages retrieved per partition.
	TopK int

	// MinScore drops passages with a lower relevance.
	MinScore float64

	SpecialistTemperature float64
	SupervisorTemperature float64

	// MaxTokens caps each agent reply.
	MaxTokens int

	// Timeout bounds each agent call.
	Timeout time.Duration
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		TopK:                  3,
		MinScore:              0.05,
		SpecialistTemperature: 0.2,
		SupervisorTemperature: 0.15,
		MaxTokens:             800,
		Timeout:               time.Hour,
	}
}

// Coordinator runs one specialist per partition and a supervisor over them.
type Coordinator struct {
	retriever Retriever
	completer ai.Completer
	settings  Settings
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithSettings replaces DefaultSettings.
func WithSettings(settings Settings) Option {
	return func(c *Coordinator) error {
		c.settings = settings
		return nil
	}
}

// WithPoolSize sets how many specialists may run at once.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if c.pool != nil {
			c.pool.Release()
		}
		c.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates a Coordinator. Call Release when done with it.
func NewCoordinator(retriever Retriever, completer ai.Completer, opts ...Option) (*Coordinator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		retriever: retriever,
		completer: completer,
		settings:  DefaultSettings(),
		pool:      pool,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}
	c.logger = c.logger.With("component", "agents")
	return c, nil
}

// Release frees the worker pool.
func (c *Coordinator) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// Model names the model backing the agents.
func (c *Coordinator) Model() string {
	return c.completer.Model()
}

// partitionBundle holds the passages a specialist works from.
type partitionBundle struct {
	dataset string
	sources []core.ScoredSource
}

type specialistResult struct {
	dataset  string
	output   Output
	judgment *core.SpecialistJudgment
	err      error
}

// Run answers question with the agent team. It returns ErrUnavailable when no
// partition has passages for the question, and ErrNoJudgments, ErrParse or
// ErrEmptyVerdict when the team fails to agree on an answer. No specialist
// output is used until every specialist has finished.
func (c *Coordinator) Run(ctx context.Context, question string, contextLimit int) (*core.SupervisorVerdict, error) {
	if contextLimit <= 0 {
		contextLimit = core.DefaultContextLimit
	}

	bundles, aggregated := c.gather(ctx, question, contextLimit)
	if len(bundles) == 0 {
		c.logger.Info("no partition has passages for the question")
		return nil, ErrUnavailable
	}
	c.logger.Info("running specialists", "count", len(bundles))

	results := c.runSpecialists(ctx, question, bundles)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	upstream := make([]string, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			c.logger.Warn("specialist failed", "dataset", r.dataset, "err", r.err)
			continue
		}
		upstream = append(upstream, specialistSummary(r))
	}
	if len(upstream) == 0 {
		return nil, ErrNoJudgments
	}

	verdict, err := c.runSupervisor(ctx, question, upstream)
	if err != nil {
		return nil, err
	}
	verdict.Sources = aggregated[:min(max(contextLimit, minAggregatedSources), len(aggregated))]

	c.logger.Info("verdict reached",
		"confidence", verdict.Confidence,
		"citations", len(verdict.Citations),
		"sources", len(verdict.Sources))
	return verdict, nil
}

// gather retrieves passages for every partition, in partition order.
// Partitions without passages are left out.
func (c *Coordinator) gather(ctx context.Context, question string, contextLimit int) ([]partitionBundle, []core.ScoredSource) {
	limit := max(contextLimit, c.settings.TopK)

	var bundles []partitionBundle
	var aggregated []core.ScoredSource
	for _, dataset := range c.retriever.Partitions(ctx) {
		sources := c.retriever.Search(ctx, search.Query{
			Text:      question,
			Partition: dataset,
			Limit:     limit,
			MinScore:  c.settings.MinScore,
		})
		if len(sources) == 0 {
			continue
		}
		bundles = append(bundles, partitionBundle{dataset: dataset, sources: sources})
		aggregated = append(aggregated, sources...)
	}
	return bundles, aggregated
}

// runSpecialists runs one specialist per bundle on the pool and waits for all
// of them.
func (c *Coordinator) runSpecialists(ctx context.Context, question string, bundles []partitionBundle) []specialistResult {
	results := make([]specialistResult, len(bundles))

	var wg sync.WaitGroup
	for i, bundle := range bundles {
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			results[i] = c.runSpecialist(ctx, question, bundle)
		})
		if err != nil {
			results[i] = specialistResult{dataset: bundle.dataset, err: fmt.Errorf("scheduling specialist: %w", err)}
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

func (c *Coordinator) runSpecialist(ctx context.Context, question string, bundle partitionBundle) specialistResult {
	result := specialistResult{dataset: bundle.dataset}

	task := SpecialistTask(bundle.dataset, question, PartitionContext(bundle.dataset, bundle.sources))
	text, err := c.complete(ctx, specialistPersona(bundle.dataset), withExpectedOutput(task, specialistExpectedOutput, nil),
		c.settings.SpecialistTemperature)
	if err != nil {
		result.err = err
		return result
	}

	result.output = TaskResult{Agent: bundle.dataset, Output: RawText{Text: text}}
	if parsed, err := Parse(result.output); err == nil {
		result.judgment = decodeJudgment(parsed, bundle.dataset)
	} else {
		c.logger.Debug("specialist output is not JSON, passing it on verbatim", "dataset", bundle.dataset)
	}
	return result
}

func (c *Coordinator) runSupervisor(ctx context.Context, question string, upstream []string) (*core.SupervisorVerdict, error) {
	prompt := withExpectedOutput(SupervisorTask(question), supervisorExpectedOutput, upstream)
	text, err := c.complete(ctx, supervisor, prompt, c.settings.SupervisorTemperature)
	if err != nil {
		return nil, fmt.Errorf("running supervisor: %w", err)
	}

	parsed, err := Parse(TaskResult{Agent: supervisorRole, Output: RawText{Text: text}})
	if err != nil {
		c.logger.Error("error parsing supervisor output", "output", core.Truncate(text, 500))
		return nil, err
	}

	verdict := decodeVerdict(parsed)
	if strings.TrimSpace(verdict.Answer) == "" {
		return nil, ErrEmptyVerdict
	}
	return verdict, nil
}

func (c *Coordinator) complete(ctx context.Context, p persona, prompt string, temperature float64) (string, error) {
	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.completer.Complete(ctx, prompt, ai.CompletionOptions{
		System:      p.system(),
		Temperature: temperature,
		MaxTokens:   c.settings.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	c.logger.Debug("agent replied", "role", p.Role, "elapsed", time.Since(start))
	return text, nil
}

// specialistSummary renders a specialist's result for the supervisor.
func specialistSummary(r specialistResult) string {
	body := ""
	if r.judgment != nil {
		if data, err := json.Marshal(r.judgment); err == nil {
			body = string(data)
		}
	}
	if body == "" {
		if raw, ok := r.output.(TaskResult).Output.(RawText); ok {
			body = strings.TrimSpace(raw.Text)
		}
	}
	return fmt.Sprintf("[%s]\n%s", r.dataset, body)
}

func decodeJudgment(m map[string]any, dataset string) *core.SpecialistJudgment {
	j := &core.SpecialistJudgment{
		Dataset:    stringField(m, "dataset"),
		Confidence: clamp(floatField(m, "score_confiance", 0)),
	}
	if j.Dataset == "" {
		j.Dataset = dataset
	}

	points, _ := m["points"].([]any)
	for _, item := range points {
		p, ok := item.(map[string]any)
		if !ok {
			continue
		}
		j.Points = append(j.Points, core.JudgmentPoint{
			Article:    stringField(p, "article"),
			Summary:    stringField(p, "resume"),
			SourceFile: stringField(p, "source_file"),
		})
	}
	return j
}

func decodeVerdict(m map[string]any) *core.SupervisorVerdict {
	return &core.SupervisorVerdict{
		Answer:     strings.TrimSpace(stringField(m, "answer")),
		Confidence: clamp(floatField(m, "confidence", DefaultVerdictConfidence)),
		Citations:  stringsField(m, "citations"),
	}
}

func clamp(f float64) float64 {
	return min(max(f, 0), 1)
}
