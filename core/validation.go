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

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ChatID and BlobKey must not be empty
//   - Status must be a known value
//   - Error is set iff Status is FAILED
//
// NOT validated:
//   - MissingQuestionIDs (only meaningful after a scoring pass)
//   - Note (free-form benign annotation)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ChatID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyChatID)
	}

	if doc.BlobKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyBlobKey)
	}

	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if (doc.Error != "") != (doc.Status == StatusFailed) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrErrorWithoutFailure)
	}

	return nil
}

// ValidateJob validates a Job according to domain rules.
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}

	if job.DocID == "" {
		return fmt.Errorf("%w: doc id cannot be empty", ErrInvalidJob)
	}

	if job.ChatID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyChatID)
	}

	if job.BlobKey == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyBlobKey)
	}

	return nil
}

// ValidateQuestion validates an EvaluationQuestion according to domain rules.
func ValidateQuestion(q *EvaluationQuestion) error {
	if q == nil {
		return fmt.Errorf("%w: question is nil", ErrInvalidQuestion)
	}

	if q.Text == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidQuestion)
	}

	if q.CategoryID == "" {
		return fmt.Errorf("%w: category id cannot be empty", ErrInvalidQuestion)
	}

	return nil
}

// ValidateStatus validates that a Status has a known value.
func ValidateStatus(status Status) error {
	switch status {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
}

// Transition checks that moving from to next is legal and returns next.
// Returns ErrInvalidTransition otherwise.
func Transition(from, next Status) (Status, error) {
	if !from.CanTransition(next) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	return next, nil
}
