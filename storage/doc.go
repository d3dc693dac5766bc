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

// Package storage provides the storage abstraction layer for docreview.
//
// It defines repository interfaces that decouple persistence from the
// pipeline and scoring logic, plus serialization helpers shared by all
// backends. The badger subpackage provides the embedded implementation.
//
// Public constructors return interfaces so backends stay swappable:
//
//	docs, err := badger.NewDocumentRepository(backend)  // storage.DocumentRepository
//
// All repository implementations must be safe for concurrent use. Methods
// accept context.Context for cancellation.
package storage
