package storage

import (
	"context"
	"time"

	"github.com/poiesic/docreview/core"
)

// DocumentRepository tracks document records through the ingestion state
// machine. Implementations must be thread-safe.
type DocumentRepository interface {
	// CreateDocument stores a new document record. Sets InsertedAt and
	// UpdatedAt; UploadedAt must already be set by the caller since it is
	// part of the record key. Returns ErrDuplicateKey if the key exists.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by its key.
	// Returns ErrNotFound if the record doesn't exist.
	GetDocument(ctx context.Context, key core.DocumentKey) (*core.Document, error)

	// ListDocumentsByChat retrieves all documents for a chat, most recent
	// upload first.
	ListDocumentsByChat(ctx context.Context, chatID string) ([]*core.Document, error)

	// SetStatus updates a document's status. Last write wins; no transition
	// checking happens here. The detail string lands in Error when status is
	// FAILED, in Note when status is COMPLETED, and is ignored otherwise.
	// Returns ErrNotFound if the record doesn't exist.
	SetStatus(ctx context.Context, key core.DocumentKey, status core.Status, detail string) error

	// SetMissingQuestions replaces the set of question IDs the scoring
	// engine could not answer for this document.
	// Returns ErrNotFound if the record doesn't exist.
	SetMissingQuestions(ctx context.Context, key core.DocumentKey, ids []core.ID) error

	// Close releases resources held by the repository.
	Close() error
}

// QuestionRepository provides access to the evaluation question reference
// data. Questions are written by seeding only; the pipeline reads them.
type QuestionRepository interface {
	// SeedQuestions stores questions, assigning content-derived IDs to any
	// with Id zero and setting InsertedAt. Re-seeding identical text is
	// idempotent because the IDs collide by construction.
	SeedQuestions(ctx context.Context, questions ...*core.EvaluationQuestion) ([]*core.EvaluationQuestion, error)

	// ListQuestions retrieves all questions for an owner, insertion order.
	ListQuestions(ctx context.Context, ownerID string) ([]*core.EvaluationQuestion, error)

	// GetQuestion retrieves one question by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetQuestion(ctx context.Context, id core.ID) (*core.EvaluationQuestion, error)

	// Close releases resources held by the repository.
	Close() error
}

// SessionRepository persists scoring sessions and accumulates answers onto
// them across documents.
type SessionRepository interface {
	// GetSession retrieves a session by its owner and creation time.
	// Returns ErrNotFound if it doesn't exist.
	GetSession(ctx context.Context, ownerID string, createdAt time.Time) (*core.ScoringSession, error)

	// MergeAnswers folds answers into the session, creating it when absent.
	// An answer for an already-answered question replaces the previous one.
	// Returns the session after the merge.
	MergeAnswers(ctx context.Context, ownerID string, createdAt time.Time, answers []core.QuestionAnswer) (*core.ScoringSession, error)

	// Close releases resources held by the repository.
	Close() error
}
