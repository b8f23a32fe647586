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

// Package googleai talks to Google's Gemini models through their
// OpenAI-compatible endpoint. It backs the optional answer validation step.
package googleai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/adala/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultBaseURL is Gemini's OpenAI-compatible API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ErrMissingAPIKey is returned when no API key is supplied.
var ErrMissingAPIKey = errors.New("googleai: API key is required")

// Validator implements ai.Completer for a Gemini model.
type Validator struct {
	client *openai.LLM
	model  string
	logger *slog.Logger
}

// Option customizes a Validator.
type Option func(*options)

type options struct {
	baseURL string
}

// WithBaseURL overrides the API root, mostly for tests and proxies.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// NewValidator creates a Gemini-backed completer.
//
// Returns ai.Completer interface to enforce abstraction.
func NewValidator(model, apiKey string, timeout time.Duration, opts ...Option) (ai.Completer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	o := options{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := openai.New(
		openai.WithBaseURL(o.baseURL),
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, err
	}

	return &Validator{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "googleai-validator", "model", model),
	}, nil
}

// Model names the model answering the calls.
func (v *Validator) Model() string {
	return v.model
}

// Complete sends a single-prompt request to Gemini.
func (v *Validator) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	v.logger.Debug("requesting validation", "prompt_length", len(prompt))
	text, err := llms.GenerateFromSinglePrompt(ctx, v.client, prompt, callOpts...)
	if err != nil {
		v.logger.Warn("validation request failed", "err", err)
		return "", err
	}
	if text == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}
