package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for reference-data entities such as evaluation
// questions. It is generated with content-based hashing so that re-seeding
// identical data produces identical IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Status is the processing state of a document.
type Status int

const (
	// StatusQueued means the upload is registered and waiting for a worker.
	StatusQueued Status = iota + 1
	// StatusProcessing means a worker owns the document right now.
	StatusProcessing
	// StatusCompleted is terminal: chunks are indexed, or the document was
	// deliberately skipped (unsupported file type).
	StatusCompleted
	// StatusFailed is terminal: no usable content, or a fatal error.
	StatusFailed
)

// String returns the persisted wire form of the status.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusProcessing:
		return "PROCESSING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are allowed for this
// job attempt.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal step of the
// document state machine. Production writes are last-write-wins; this exists
// so the legal machine is explicit and testable.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// DocumentKey identifies a document record: ChatID is the partition key,
// UploadedAt the sort key. A re-upload of the same file gets a fresh
// UploadedAt and therefore a fresh state machine instance.
type DocumentKey struct {
	ChatID     string
	UploadedAt time.Time
}

// Document is one row per uploaded file.
type Document struct {
	ChatID             string
	UploadedAt         time.Time
	DocID              string // UUID, stable across retries of the same upload
	FileName           string
	BlobKey            string
	FileType           string // MIME type
	Status             Status
	Error              string // set iff Status == StatusFailed
	Note               string // benign explanation on COMPLETED (e.g. unsupported type)
	MissingQuestionIDs []ID   // questions the scoring engine could not answer
	InsertedAt         time.Time
	UpdatedAt          time.Time
}

// Key returns the record key for this document.
func (d *Document) Key() DocumentKey {
	return DocumentKey{ChatID: d.ChatID, UploadedAt: d.UploadedAt}
}

// ChunkPayload is the metadata stored alongside a chunk vector in the index.
// Every payload field is filterable.
type ChunkPayload struct {
	Text       string
	DocumentID string
	ChatID     string
	BlobKey    string
	FileName   string
	PageNumber int // 1-indexed for paginated sources, 0 when the source has no page concept
	ChunkIndex int // 0-indexed, per page for paginated sources
}

// ChunkPoint is one point in the vector index. IDs are fresh per ingestion;
// they need not be stable across re-ingestion of the same document.
type ChunkPoint struct {
	ID      string
	Vector  []float32
	Payload ChunkPayload
}

// EvaluationQuestion is read-only reference data used by the scoring engine.
type EvaluationQuestion struct {
	Id         ID // content-derived from Text
	Text       string
	CategoryID string
	OwnerID    string
	InsertedAt time.Time
}

// QuestionAnswer is one scored answer produced by the scoring engine.
// Answer is 0 (No), 1 (Maybe), or 2 (Yes). Unanswerable questions never
// become QuestionAnswers; they are tracked on the document instead.
type QuestionAnswer struct {
	QuestionID ID
	Answer     int
	Reasoning  string
}

// ScoringSession accumulates answers for one review, keyed by
// (OwnerID, CreatedAt).
type ScoringSession struct {
	OwnerID    string
	CreatedAt  time.Time
	Answers    []QuestionAnswer
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// MergeAnswers merges new answers into the session. An answer for a question
// that already has one replaces it.
func (s *ScoringSession) MergeAnswers(answers []QuestionAnswer) {
	for _, a := range answers {
		replaced := false
		for i := range s.Answers {
			if s.Answers[i].QuestionID == a.QuestionID {
				s.Answers[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			s.Answers = append(s.Answers, a)
		}
	}
}

// maxAnswerScore is the score of a "Yes" answer.
const maxAnswerScore = 2

// CategoryScores aggregates answers into a per-category fraction of the
// achievable score. categoryOf maps question IDs to category IDs; answers
// whose question has no known category are ignored. Only answered questions
// enter the denominator, so unanswerable questions do not drag a category
// toward zero.
func (s *ScoringSession) CategoryScores(categoryOf map[ID]string) map[string]float64 {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, a := range s.Answers {
		cat, ok := categoryOf[a.QuestionID]
		if !ok {
			continue
		}
		sums[cat] += a.Answer
		counts[cat]++
	}

	scores := make(map[string]float64, len(sums))
	for cat, sum := range sums {
		scores[cat] = float64(sum) / float64(maxAnswerScore*counts[cat])
	}
	return scores
}

// ReviewContext carries the scoring-session reference on review-workflow jobs.
type ReviewContext struct {
	OwnerID          string
	SessionCreatedAt time.Time
}

// Job is one ingestion work item. DocID doubles as the queue's deduplication
// key: at most one job per DocID is in flight or pending.
type Job struct {
	DocID      string
	ChatID     string
	UploadedAt time.Time
	FileName   string
	BlobKey    string
	FileType   string
	Review     *ReviewContext // nil for plain chat uploads
	Attempts   int            // delivery attempts so far, maintained by the queue
	EnqueuedAt time.Time
}
