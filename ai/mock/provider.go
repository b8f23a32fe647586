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

package mock

import "github.com/poiesic/adala/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock embedder and completer instances.
type MockProvider struct {
	embedder  *MockEmbedder
	generator *MockCompleter
	agents    *MockCompleter
	validator *MockCompleter
}

// NewMockProvider creates a new mock provider with default mock services.
// The validator is left unset, matching a deployment without an API key.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use the GetMock* accessors to reach concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		generator: NewMockCompleter("mock-generator"),
		agents:    NewMockCompleter("mock-agents"),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// A nil validator disables validation.
func NewMockProviderWithServices(embedder *MockEmbedder, generator, agents, validator *MockCompleter) ai.AIProvider {
	return &MockProvider{
		embedder:  embedder,
		generator: generator,
		agents:    agents,
		validator: validator,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the mock generation completer.
func (p *MockProvider) Generator() ai.Completer {
	return p.generator
}

// Agents returns the mock agent completer.
func (p *MockProvider) Agents() ai.Completer {
	if p.agents == nil {
		return nil
	}
	return p.agents
}

// Validator returns the mock validator, or nil when none was supplied.
func (p *MockProvider) Validator() ai.Completer {
	if p.validator == nil {
		return nil
	}
	return p.validator
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockGenerator returns the underlying generation mock for test assertions.
func (p *MockProvider) GetMockGenerator() *MockCompleter {
	return p.generator
}

// GetMockAgents returns the underlying agent mock for test assertions.
func (p *MockProvider) GetMockAgents() *MockCompleter {
	return p.agents
}
