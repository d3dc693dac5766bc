package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docreview/ai"
	"github.com/poiesic/docreview/blob"
	"github.com/poiesic/docreview/chunk"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/extract"
	"github.com/poiesic/docreview/index"
	"github.com/poiesic/docreview/review"
	"github.com/poiesic/docreview/storage"
)

const defaultEmbedWorkers = 4

var (
	// ErrBlobStoreRequired indicates the worker was built without a blob store.
	ErrBlobStoreRequired = errors.New("blob store is required")

	// ErrProviderRequired indicates the worker was built without an AI provider.
	ErrProviderRequired = errors.New("ai provider is required")

	// ErrIndexRequired indicates the worker was built without a vector index.
	ErrIndexRequired = errors.New("vector index is required")

	// ErrDocumentRepositoryRequired indicates the worker was built without
	// a document repository.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")
)

// Extractor turns file bytes into text. Satisfied by extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileType string) (*extract.Result, error)
}

// Worker processes one ingestion job at a time. A single Worker is shared
// by all queue consumers; it holds no per-job state.
type Worker struct {
	blobs        blob.Store
	extractor    Extractor
	splitter     *chunk.Splitter
	provider     ai.Provider
	idx          index.Index
	docs         storage.DocumentRepository
	questions    storage.QuestionRepository
	sessions     storage.SessionRepository
	engine       *review.Engine
	embedWorkers int
	logger       *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker) error

// WithEmbedConcurrency caps the per-document embedding fan-out. Default is 4.
func WithEmbedConcurrency(n int) Option {
	return func(w *Worker) error {
		if n < 1 {
			n = 1
		}
		w.embedWorkers = n
		return nil
	}
}

// WithSplitter overrides the default chunk splitter.
func WithSplitter(s *chunk.Splitter) Option {
	return func(w *Worker) error {
		if s != nil {
			w.splitter = s
		}
		return nil
	}
}

// WithExtractor overrides the default extractor.
func WithExtractor(e Extractor) Option {
	return func(w *Worker) error {
		if e != nil {
			w.extractor = e
		}
		return nil
	}
}

// WithReview wires the scoring path: the question and session repositories
// plus engine options. Without this option jobs carrying a review context
// skip scoring with a warning.
func WithReview(questions storage.QuestionRepository, sessions storage.SessionRepository, engineOpts ...review.Option) Option {
	return func(w *Worker) error {
		if questions == nil || sessions == nil {
			return errors.New("review requires question and session repositories")
		}
		engine, err := review.NewEngine(w.provider.Embedder(), w.provider.ChatModel(), w.idx, engineOpts...)
		if err != nil {
			return err
		}
		w.questions = questions
		w.sessions = sessions
		w.engine = engine
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) error {
		if logger != nil {
			w.logger = logger
		}
		return nil
	}
}

// NewWorker creates an ingestion worker.
func NewWorker(
	blobs blob.Store,
	provider ai.Provider,
	idx index.Index,
	docs storage.DocumentRepository,
	opts ...Option,
) (*Worker, error) {
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	w := &Worker{
		blobs:        blobs,
		extractor:    extract.New(),
		splitter:     chunk.NewSplitter(),
		provider:     provider,
		idx:          idx,
		docs:         docs,
		embedWorkers: defaultEmbedWorkers,
		logger:       slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Process runs one job end to end. It is the queue consumer's handler: a
// returned error requests redelivery, nil acknowledges the job whatever the
// document's final status is.
func (w *Worker) Process(ctx context.Context, job *core.Job) error {
	if err := core.ValidateJob(job); err != nil {
		// A malformed job can never succeed; drop it without retry.
		w.logger.Error("dropping invalid job", "docId", job.DocID, "err", err)
		return nil
	}

	key := core.DocumentKey{ChatID: job.ChatID, UploadedAt: job.UploadedAt}
	logger := w.logger.With("docId", job.DocID, "chatId", job.ChatID, "file", job.FileName)

	w.setStatus(ctx, key, logger, core.StatusProcessing, "")

	data, err := w.blobs.Get(ctx, job.BlobKey)
	if err != nil {
		return w.fail(ctx, key, logger, fmt.Errorf("fetch blob %s: %w", job.BlobKey, err))
	}

	result, err := w.extractor.Extract(ctx, data, job.FileType)
	if errors.Is(err, extract.ErrUnsupportedType) {
		logger.Info("skipping unsupported file type", "fileType", job.FileType)
		w.setStatus(ctx, key, logger, core.StatusCompleted,
			fmt.Sprintf("unsupported file type %s, nothing indexed", job.FileType))
		return nil
	}
	if err != nil {
		return w.fail(ctx, key, logger, err)
	}

	if result.Empty() {
		logger.Warn("no text content extracted")
		w.setStatus(ctx, key, logger, core.StatusFailed, "no text content extracted")
		return nil
	}

	var chunks []chunk.Chunk
	if result.Paginated() {
		chunks, err = w.splitter.SplitPages(result.Pages)
	} else {
		chunks, err = w.splitter.Split(result.Text)
	}
	if err != nil {
		return w.fail(ctx, key, logger, fmt.Errorf("split text: %w", err))
	}
	if len(chunks) == 0 {
		logger.Warn("no chunks generated")
		w.setStatus(ctx, key, logger, core.StatusFailed, "no chunks generated")
		return nil
	}

	vectors, err := w.embedChunks(ctx, chunks)
	if err != nil {
		return w.fail(ctx, key, logger, err)
	}

	if err := w.idx.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return w.fail(ctx, key, logger, fmt.Errorf("ensure collection: %w", err))
	}

	points := make([]core.ChunkPoint, len(chunks))
	for i, c := range chunks {
		points[i] = core.ChunkPoint{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: core.ChunkPayload{
				Text:       c.Text,
				DocumentID: job.DocID,
				ChatID:     job.ChatID,
				BlobKey:    job.BlobKey,
				FileName:   job.FileName,
				PageNumber: c.Page,
				ChunkIndex: c.Index,
			},
		}
	}
	if err := w.idx.Upsert(ctx, points); err != nil {
		return w.fail(ctx, key, logger, fmt.Errorf("upsert points: %w", err))
	}
	logger.Info("indexed document", "chunks", len(points))

	if job.Review != nil {
		if err := w.score(ctx, job, key, logger); err != nil {
			return w.fail(ctx, key, logger, err)
		}
	}

	w.setStatus(ctx, key, logger, core.StatusCompleted, "")
	return nil
}

// embedChunks fans out embedding calls with a bounded concurrency. Vectors
// come back in chunk order; any single failure aborts the whole batch.
func (w *Worker) embedChunks(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	embedder := w.provider.Embedder()
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.embedWorkers)
	for i, c := range chunks {
		g.Go(func() error {
			vector, err := embedder.EmbedText(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// score runs the review engine and persists its output. Answers merge into
// the scoring session; unanswerable IDs land on the document record.
func (w *Worker) score(ctx context.Context, job *core.Job, key core.DocumentKey, logger *slog.Logger) error {
	if w.engine == nil {
		logger.Warn("job carries review context but scoring is not configured")
		return nil
	}

	questions, err := w.questions.ListQuestions(ctx, job.Review.OwnerID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		logger.Info("no questions to score", "ownerId", job.Review.OwnerID)
		return nil
	}

	result, err := w.engine.Score(ctx, job.ChatID, questions)
	if err != nil {
		return fmt.Errorf("score questions: %w", err)
	}

	if len(result.Answers) > 0 {
		_, err = w.sessions.MergeAnswers(ctx, job.Review.OwnerID, job.Review.SessionCreatedAt, result.Answers)
		if err != nil {
			return fmt.Errorf("merge answers: %w", err)
		}
	}
	if err := w.docs.SetMissingQuestions(ctx, key, result.Unanswerable); err != nil {
		return fmt.Errorf("set missing questions: %w", err)
	}
	return nil
}

// fail marks the document FAILED and propagates the error for redelivery.
func (w *Worker) fail(ctx context.Context, key core.DocumentKey, logger *slog.Logger, err error) error {
	logger.Error("job failed", "err", err)
	w.setStatus(ctx, key, logger, core.StatusFailed, err.Error())
	return err
}

// setStatus writes the status record best-effort. A status write failure is
// a secondary concern and must not stall the pipeline.
func (w *Worker) setStatus(ctx context.Context, key core.DocumentKey, logger *slog.Logger, status core.Status, detail string) {
	if err := w.docs.SetStatus(ctx, key, status, detail); err != nil {
		logger.Error("failed to update document status", "status", status, "err", err)
	}
}
