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

package openai

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/adala/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer against an OpenAI-compatible chat API.
type Completer struct {
	client *openai.LLM
	model  string
	logger *slog.Logger
}

// ClientConfig describes a single chat endpoint.
type ClientConfig struct {
	BaseURL string
	Token   string
	Model   string
	Timeout time.Duration
}

// newCompleter is an internal constructor that returns the concrete type.
func newCompleter(cfg ClientConfig) (*Completer, error) {
	token := cfg.Token
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client: client,
		model:  cfg.Model,
		logger: slog.Default().With("component", "openai-completer", "model", cfg.Model),
	}, nil
}

// NewCompleter creates a completer for an arbitrary OpenAI-compatible endpoint.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(cfg ClientConfig) (ai.Completer, error) {
	return newCompleter(cfg)
}

// Model names the model answering the calls.
func (c *Completer) Model() string {
	return c.model
}

// Complete sends prompt as a human message, optionally preceded by a system message.
func (c *Completer) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	content := make([]llms.MessageContent, 0, 2)
	if opts.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, opts.System))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(opts.TopP))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	c.logger.Debug("requesting completion", "prompt_length", len(prompt), "json", opts.JSONMode)
	start := time.Now()

	response, err := c.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		c.logger.Error("failed to generate content", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		c.logger.Debug("no choices returned from model")
		return "", ai.ErrEmptyCompletion
	}

	c.logger.Debug("completion received", "duration", time.Since(start), "length", len(response.Choices[0].Content))
	return response.Choices[0].Content, nil
}
