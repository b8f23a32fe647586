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

package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/core"
)

const (
	// DefaultValidationConfidence is reported when no review took place.
	DefaultValidationConfidence = 0.5

	// RawReviewConfidence is reported when the reviewer answered in prose.
	RawReviewConfidence = 0.7
)

// DefaultCompletionOptions are the sampling settings for local answers.
var DefaultCompletionOptions = ai.CompletionOptions{
	Temperature: 0.2,
	TopP:        0.9,
	MaxTokens:   1000,
}

// Draft is an answer produced by the local model.
type Draft struct {
	Text        string
	Confidence  float64
	Model       string
	SourcesUsed int
}

// Review is the outcome of a validation pass.
type Review struct {
	Text         string
	Confidence   float64
	Improvements []string
	Notes        string
	Reviewed     bool // false when the answer was returned untouched
}

type reviewReply struct {
	ImprovedAnswer  *string  `json:"improved_answer"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Improvements    []string `json:"improvements"`
	Notes           string   `json:"notes"`
}

// Backend drafts answers with a local model and reviews them with an
// optional cloud model.
type Backend struct {
	generator ai.Completer
	validator ai.Completer
	options   ai.CompletionOptions
	logger    *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCompletionOptions overrides DefaultCompletionOptions.
func WithCompletionOptions(opts ai.CompletionOptions) Option {
	return func(b *Backend) {
		b.options = opts
	}
}

// NewBackend creates a Backend. validator may be nil, which disables review.
func NewBackend(generator, validator ai.Completer, opts ...Option) (*Backend, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	b := &Backend{
		generator: generator,
		validator: validator,
		options:   DefaultCompletionOptions,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "generation")
	return b, nil
}

// ValidationEnabled reports whether answers are reviewed.
func (b *Backend) ValidationEnabled() bool {
	return b.validator != nil
}

// GeneratorModel names the local model.
func (b *Backend) GeneratorModel() string {
	return b.generator.Model()
}

// Generate drafts an answer to question from the first contextLimit sources.
// A non-positive contextLimit means core.DefaultContextLimit. The confidence
// is computed over every source passed in.
func (b *Backend) Generate(ctx context.Context, question string, sources []core.ScoredSource, contextLimit int) (*Draft, error) {
	if contextLimit <= 0 {
		contextLimit = core.DefaultContextLimit
	}
	used := sources[:min(contextLimit, len(sources))]

	text, err := b.generator.Complete(ctx, LegalPrompt(question, used), b.options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)

	draft := &Draft{
		Text:        text,
		Confidence:  Confidence(text, sources),
		Model:       b.generator.Model(),
		SourcesUsed: len(used),
	}
	b.logger.Debug("answer drafted",
		"model", draft.Model,
		"sources", draft.SourcesUsed,
		"confidence", draft.Confidence)
	return draft, nil
}

// Validate has the cloud model review answer against sources.
// It never fails: without a validator, or when the review call errors, the
// answer comes back unchanged with DefaultValidationConfidence. A reply that
// is not JSON is taken verbatim with RawReviewConfidence.
func (b *Backend) Validate(ctx context.Context, question, answer string, sources []core.ScoredSource) Review {
	unchanged := Review{Text: answer, Confidence: DefaultValidationConfidence}
	if b.validator == nil {
		return unchanged
	}

	raw, err := b.validator.Complete(ctx, ValidationPrompt(question, answer, sources), ai.CompletionOptions{})
	if err != nil {
		b.logger.Error("error validating answer", "model", b.validator.Model(), "err", fmt.Errorf("%w: %w", ErrValidation, err))
		return unchanged
	}

	var reply reviewReply
	if err := json.Unmarshal([]byte(ai.StripCodeFences(raw)), &reply); err != nil {
		b.logger.Debug("validation reply is not JSON, using it verbatim", "err", err)
		return Review{Text: strings.TrimSpace(raw), Confidence: RawReviewConfidence, Reviewed: true}
	}

	review := Review{
		Text:         answer,
		Confidence:   DefaultValidationConfidence,
		Improvements: reply.Improvements,
		Notes:        reply.Notes,
		Reviewed:     true,
	}
	if reply.ImprovedAnswer != nil && strings.TrimSpace(*reply.ImprovedAnswer) != "" {
		review.Text = strings.TrimSpace(*reply.ImprovedAnswer)
	}
	if reply.ConfidenceScore != nil {
		review.Confidence = min(max(*reply.ConfidenceScore, 0), 1)
	}
	return review
}
