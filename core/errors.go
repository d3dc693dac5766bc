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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidQuestion indicates an EvaluationQuestion failed validation.
	ErrInvalidQuestion = errors.New("invalid evaluation question")

	// ErrInvalidStatus indicates an unknown Status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition indicates a status transition the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyChatID indicates a missing chat/partition identifier.
	ErrEmptyChatID = errors.New("chat id cannot be empty")

	// ErrEmptyBlobKey indicates a missing blob store key.
	ErrEmptyBlobKey = errors.New("blob key cannot be empty")

	// ErrEmptyChunkText indicates a chunk point with no text payload.
	ErrEmptyChunkText = errors.New("chunk text cannot be empty")

	// ErrErrorWithoutFailure indicates an error message on a non-FAILED
	// document, which violates the status invariant.
	ErrErrorWithoutFailure = errors.New("error message requires FAILED status")
)
