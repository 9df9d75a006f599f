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


// Package ai provides abstractions for the AI services used by docinx.
//
// The package defines the capabilities the pipeline needs from a model
// vendor, the request types passed to them, and the error classification
// that drives retry and fallback decisions. Business logic depends on
// these abstractions and never on a vendor SDK.
//
// # Interfaces
//
//   - Embedder: generates vector embeddings from text
//   - Completer: generates a chat completion from a message list
//   - AIProvider: aggregates the services of one vendor
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/anthropic: Claude through langchaingo
//   - ai/gemini: Google Generative Language API
//   - ai/local: in-process fallbacks that need no network
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Error Kinds
//
// Providers wrap failures in *ProviderError. The Kind decides what the
// fallback chain does next:
//
//   - KindTransient: retry the same provider within its attempt budget
//   - KindQuota: give up on the provider for this call and record a breaker failure
//   - KindPermanent: give up on the provider without retrying
//
// Errors that were not wrapped are classified from their text by Classify.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithOpenAIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
package ai
