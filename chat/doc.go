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


// Package chat answers questions over the document corpus.
//
// An Orchestrator turns one user message into one assistant reply:
//
//  1. The session is looked up or created and the user message is stored.
//  2. The search resolver retrieves up to MaxSources chunks.
//  3. A prompt is built from a system instruction, the recent conversation
//     and the retrieved excerpts, bounded to MaxContextLength characters.
//  4. The completion chain produces the reply, falling back to a templated
//     answer built from the retrieved chunks when every model is unavailable.
//  5. The reply is stored with its sources and the provider that wrote it.
//
// Send never returns an error. Internal failures produce an apology reply
// whose provider is "error_handler".
//
// # Usage
//
//	orch, err := chat.NewOrchestrator(store, resolver, completions)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp := orch.Send(ctx, chat.Request{UserID: "u1", Message: "What is the refund policy?"})
//	fmt.Println(resp.Reply, resp.Metadata.ProviderUsed)
package chat
