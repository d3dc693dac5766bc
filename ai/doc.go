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


// Package ai defines the contracts for the AI services the pipeline depends
// on: text embedding and chat-model generation. Concrete implementations
// live in subpackages:
//
//   - ai/openai: OpenAI-compatible APIs via langchaingo
//   - ai/mock: deterministic test doubles
//
// The package also owns the provider failure taxonomy. Callers need to
// distinguish "fix your configuration" (ErrMissingCredentials) from "wait
// and retry" (ErrQuotaExceeded); everything else is a generic provider
// failure, fatal for the job that hit it.
package ai
