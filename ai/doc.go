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


// Package ai defines the ports lexrag uses to reach model services.
//
// Two services are consumed as black boxes:
//
//   - Embedder: turns text into a vector for similarity search
//   - Completer: turns a prompt into generated text
//
// AIProvider bundles both so they can share configuration and be closed together.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible services (Ollama, vLLM, Groq) through langchaingo
//   - ai/cache: an Embedder decorator that memoizes vectors in a ristretto cache
//   - ai/mock: deterministic test doubles
//
// # Errors
//
// Implementations wrap core.ErrEmbeddingUnavailable, core.ErrLLMUnavailable or
// core.ErrLLMRejected. IsTransient tells retrying callers which is which.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewCompleter) return interface
// types. Mock constructors (mock.NewMockEmbedder, mock.NewMockCompleter) return
// concrete types so tests can inject behavior and assert on call counts.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())  // returns ai.AIProvider
//	completer := mock.NewMockCompleter("réponse")             // returns *mock.MockCompleter
package ai
