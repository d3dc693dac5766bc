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

// Package pipeline runs the ingestion worker: fetch the uploaded bytes,
// extract text, chunk, embed, index, and optionally score review questions,
// while driving the document status record.
//
// Failure handling distinguishes three kinds of outcome. Benign dead ends
// (unsupported file type, no extractable text, no chunks) terminate the
// document without returning an error, so the queue never redelivers them.
// Fatal errors (blob fetch, provider calls, index writes) mark the document
// FAILED and propagate to the consumer so its retry policy applies. Status
// writes themselves are best-effort and only logged on failure.
package pipeline
