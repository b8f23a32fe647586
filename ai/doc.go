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

// Package ai provides abstractions for the model services used by Adala.
//
// The package defines the interfaces the rest of the code depends on:
//
//   - Embedder: Generates vector embeddings from text
//   - Completer: Turns a prompt into a text completion
//   - AIProvider: Aggregates the embedder and the completers that share a configuration
//
// # Implementation Packages
//
//   - ai/openai: Local models behind an OpenAI-compatible API (Ollama, LocalAI, vLLM)
//   - ai/googleai: The optional cloud validation model
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, ...) return
// INTERFACE types. Test constructors (mock.NewMockEmbedder,
// mock.NewMockCompleter) return CONCRETE types so tests can inject behavior
// and read call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "capital minimum")
//	text, err := provider.Generator().Complete(ctx, prompt, ai.CompletionOptions{Temperature: 0.2})
//
// # Model Output
//
// Models frequently wrap JSON in markdown fences, drop quotes around keys or
// surround the object with prose. StripCodeFences, RepairJSON and
// ExtractJSONObject normalize such output before it is decoded.
package ai
