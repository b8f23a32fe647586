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
	"log/slog"

	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/ai/googleai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages the embedder, the local generator, the agent model and the
// optional cloud validator.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *Completer
	agents    *Completer
	validator ai.Completer
	logger    *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	generator, err := newCompleter(ClientConfig{
		BaseURL: config.GenerationHost,
		Model:   config.GenerationModel,
		Timeout: config.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")

	agents := generator
	if model := config.EffectiveAgentModel(); model != config.GenerationModel {
		agents, err = newCompleter(ClientConfig{
			BaseURL: config.GenerationHost,
			Model:   model,
			Timeout: config.RequestTimeout,
		})
		if err != nil {
			// Agents are optional; the classical path still answers.
			logger.Warn("agent model unavailable", "model", model, "err", err)
			agents = nil
		}
	}

	var validator ai.Completer
	if config.ValidationEnabled() {
		validator, err = googleai.NewValidator(config.ValidationModel, config.ValidationAPIKey, config.RequestTimeout)
		if err != nil {
			// Validation is optional; answers are still produced without it.
			logger.Warn("validation model unavailable", "model", config.ValidationModel, "err", err)
			validator = nil
		}
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		generator: generator,
		agents:    agents,
		validator: validator,
		logger:    logger,
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the local generation model.
func (p *Provider) Generator() ai.Completer {
	return p.generator
}

// Agents returns the model backing the multi-agent coordinator.
// It returns nil when the agent model could not be set up.
func (p *Provider) Agents() ai.Completer {
	if p.agents == nil {
		return nil
	}
	return p.agents
}

// Validator returns the cloud validation model, or nil when disabled.
func (p *Provider) Validator() ai.Completer {
	return p.validator
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
