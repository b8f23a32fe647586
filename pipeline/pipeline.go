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

// Package pipeline answers legal questions end to end.
//
// For every question the pipeline short-circuits greetings, serves exact
// repeats from the conversation history, tries the multi-agent coordinator
// and falls back to classical retrieval plus local generation. Answers are
// optionally reviewed by a cloud model before being recorded. Failures never
// escape Ask: they become zero-confidence answers explaining what went wrong.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/adala/agents"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/generation"
	"github.com/poiesic/adala/metrics"
	"github.com/poiesic/adala/search"
)

// NoInformationAnswer is returned when retrieval finds nothing.
const NoInformationAnswer = "Je n'ai pas trouvé d'informations pertinentes dans les documents juridiques disponibles pour répondre à votre question."

// errorAnswerPrefix starts the text of answers reporting a failure.
const errorAnswerPrefix = "Une erreur s'est produite lors du traitement de votre question: "

// minClassicalResults is the floor on the number of passages retrieved by
// the classical path.
const minClassicalResults = 5

// Searcher retrieves passages for a query.
type Searcher interface {
	Search(ctx context.Context, q search.Query) []core.ScoredSource
}

// AgentRunner answers a question with the multi-agent team.
type AgentRunner interface {
	Run(ctx context.Context, question string, contextLimit int) (*core.SupervisorVerdict, error)
}

// Generator drafts and reviews answers.
type Generator interface {
	Generate(ctx context.Context, question string, sources []core.ScoredSource, contextLimit int) (*generation.Draft, error)
	Validate(ctx context.Context, question, answer string, sources []core.ScoredSource) generation.Review
	ValidationEnabled() bool
}

// History records answers and serves exact repeats.
type History interface {
	Lookup(question string) (*core.Answer, bool)
	Append(ctx context.Context, question string, answer *core.Answer) (core.HistoryEntry, error)
}

// Pipeline answers questions.
type Pipeline struct {
	searcher  Searcher
	generator Generator
	history   History
	agents    AgentRunner
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAgents enables the multi-agent path.
func WithAgents(runner AgentRunner) Option {
	return func(p *Pipeline) {
		p.agents = runner
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

var (
	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrHistoryRequired is returned when a history is not provided.
	ErrHistoryRequired = errors.New("history required")
)

// New creates a Pipeline.
func New(searcher Searcher, generator Generator, history History, opts ...Option) (*Pipeline, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if history == nil {
		return nil, ErrHistoryRequired
	}

	p := &Pipeline{
		searcher:  searcher,
		generator: generator,
		history:   history,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// AgentsEnabled reports whether the multi-agent path is configured.
func (p *Pipeline) AgentsEnabled() bool {
	return p.agents != nil
}

// Ask answers q. It always returns an answer.
func (p *Pipeline) Ask(ctx context.Context, q core.Question) *core.Answer {
	start := p.now()
	metrics.QuestionsInFlight.Inc()
	defer metrics.QuestionsInFlight.Dec()

	if reply, ok := Greeting(q.Text); ok {
		p.logger.Info("greeting detected")
		answer := &core.Answer{Text: reply, Sources: []core.ScoredSource{}, Confidence: 1.0, Timestamp: p.now()}
		p.observe(metrics.PathGreeting, answer)
		return answer
	}

	if cached, ok := p.history.Lookup(q.Text); ok {
		p.logger.Info("question found in history")
		p.observe(metrics.PathCache, cached)
		return cached
	}

	answer, path, err := p.answer(ctx, q, start)
	if err != nil {
		p.logger.Error("error answering question", "err", err)
		answer = &core.Answer{
			Text:           errorAnswerPrefix + err.Error(),
			Sources:        []core.ScoredSource{},
			Confidence:     0,
			ProcessingTime: p.since(start),
			Timestamp:      p.now(),
		}
		p.observe(metrics.PathError, answer)
		return answer
	}

	if path != metrics.PathNoResults {
		if _, err := p.history.Append(ctx, q.Text, answer); err != nil {
			p.logger.Error("error recording answer in history", "err", err)
		}
	}
	p.observe(path, answer)
	p.logger.Info("question answered", "path", path, "confidence", answer.Confidence, "sources", len(answer.Sources))
	return answer
}

func (p *Pipeline) answer(ctx context.Context, q core.Question, start time.Time) (answer *core.Answer, path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			answer, path, err = nil, metrics.PathError, fmt.Errorf("%v", r)
		}
	}()

	limit := q.ContextLimit
	if limit <= 0 {
		limit = core.DefaultContextLimit
	}

	var (
		text       string
		confidence float64
		sources    []core.ScoredSource
	)

	verdict := p.runAgents(ctx, q.Text, limit)
	if err := ctx.Err(); err != nil {
		return nil, metrics.PathError, err
	}

	if verdict != nil {
		path = metrics.PathAgents
		text, confidence, sources = verdict.Answer, verdict.Confidence, verdict.Sources
		if len(sources) == 0 {
			sources = p.classicalSources(ctx, q.Text, limit)
		}
	} else {
		path = metrics.PathClassical
		sources = p.classicalSources(ctx, q.Text, limit)
		if len(sources) == 0 {
			p.logger.Warn("no sources found")
			return &core.Answer{
				Text:           NoInformationAnswer,
				Sources:        []core.ScoredSource{},
				Confidence:     0,
				ProcessingTime: p.since(start),
				Timestamp:      p.now(),
			}, metrics.PathNoResults, nil
		}

		draft, err := p.generator.Generate(ctx, q.Text, sources, limit)
		if err != nil {
			return nil, metrics.PathError, err
		}
		text, confidence = draft.Text, draft.Confidence
	}

	if p.generator.ValidationEnabled() {
		review := p.generator.Validate(ctx, q.Text, text, sources)
		metrics.ValidationRuns.WithLabelValues(reviewOutcome(review)).Inc()
		if review.Text != "" {
			text = review.Text
		}
		confidence = max(confidence, review.Confidence)
	}

	if sources == nil {
		sources = []core.ScoredSource{}
	}
	return &core.Answer{
		Text:           text,
		Sources:        sources,
		Confidence:     confidence,
		ProcessingTime: p.since(start),
		Timestamp:      p.now(),
	}, path, nil
}

// runAgents returns the team's verdict, or nil when the classical path
// should answer instead.
func (p *Pipeline) runAgents(ctx context.Context, question string, limit int) *core.SupervisorVerdict {
	if p.agents == nil {
		return nil
	}

	verdict, err := p.agents.Run(ctx, question, limit)
	switch {
	case errors.Is(err, agents.ErrUnavailable):
		metrics.AgentRuns.WithLabelValues("unavailable").Inc()
		p.logger.Info("multi-agent path unavailable, using classical retrieval")
		return nil
	case err != nil:
		metrics.AgentRuns.WithLabelValues("failure").Inc()
		p.logger.Warn("multi-agent path failed, using classical retrieval", "err", err)
		return nil
	case verdict == nil || verdict.Answer == "":
		metrics.AgentRuns.WithLabelValues("failure").Inc()
		return nil
	}
	metrics.AgentRuns.WithLabelValues("success").Inc()
	return verdict
}

func (p *Pipeline) classicalSources(ctx context.Context, question string, limit int) []core.ScoredSource {
	return p.searcher.Search(ctx, search.Query{
		Text:     question,
		Limit:    max(minClassicalResults, limit),
		MinScore: 0,
	})
}

func (p *Pipeline) observe(path string, answer *core.Answer) {
	metrics.QuestionsAnswered.WithLabelValues(path).Inc()
	metrics.AnswerDuration.WithLabelValues(path).Observe(answer.ProcessingTime)
	metrics.AnswerConfidence.WithLabelValues(path).Observe(answer.Confidence)
}

func (p *Pipeline) since(start time.Time) float64 {
	return p.now().Sub(start).Seconds()
}

func reviewOutcome(r generation.Review) string {
	if r.Reviewed {
		return "success"
	}
	return "failure"
}
