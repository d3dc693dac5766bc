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


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docreview/ai"
	"github.com/poiesic/docreview/ai/openai"
	"github.com/poiesic/docreview/blob/s3"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/index"
	badgerindex "github.com/poiesic/docreview/index/badger"
	"github.com/poiesic/docreview/index/pgvector"
	"github.com/poiesic/docreview/pipeline"
	"github.com/poiesic/docreview/queue"
	"github.com/poiesic/docreview/reindex"
	"github.com/poiesic/docreview/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "docreview",
		Usage: "Document ingestion and review scoring pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Run the ingestion worker pool against the durable job queue",
				Action: workerCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent job workers",
						Value: 3,
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Delivery attempts before a job is dropped",
						Value: 5,
					},
					&cli.DurationFlag{
						Name:  "job-timeout",
						Usage: "Per-job processing deadline",
						Value: 5 * time.Minute,
					},
					&cli.StringFlag{
						Name:     "s3-bucket",
						Usage:    "S3 bucket holding uploaded documents",
						Required: true,
						EnvVars:  []string{"DOCREVIEW_S3_BUCKET"},
					},
					&cli.StringFlag{
						Name:    "s3-region",
						Usage:   "S3 region",
						Value:   "us-east-1",
						EnvVars: []string{"DOCREVIEW_S3_REGION"},
					},
					&cli.StringFlag{
						Name:    "s3-access-key",
						Usage:   "S3 access key (falls back to the default AWS credential chain)",
						EnvVars: []string{"DOCREVIEW_S3_ACCESS_KEY"},
					},
					&cli.StringFlag{
						Name:    "s3-secret-key",
						Usage:   "S3 secret key",
						EnvVars: []string{"DOCREVIEW_S3_SECRET_KEY"},
					},
					&cli.StringFlag{
						Name:    "s3-endpoint",
						Usage:   "Endpoint override for S3-compatible services",
						EnvVars: []string{"DOCREVIEW_S3_ENDPOINT"},
					},
				}, aiFlags()...),
			},
			{
				Name:   "seed-questions",
				Usage:  "Load evaluation questions from a JSON file",
				Action: seedQuestionsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "owner-id",
						Usage:    "Owner scope for the question set",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON file containing [{\"text\": ..., \"categoryId\": ...}, ...]",
						Required: true,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "List documents for a chat with their processing status",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "chat-id",
						Usage:    "Chat to list documents for",
						Required: true,
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every indexed chunk with the current embedding model",
				Action: reindexCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, aiFlags()...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// aiFlags are shared by every command that talks to the model services.
func aiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "chat-host",
			Usage: "Chat completion service host URL (defaults to embedding-host)",
		},
		&cli.StringFlag{
			Name:     "embedding-model",
			Usage:    "Embedding model name",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "chat-model",
			Usage: "Chat model name used for scoring",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:    "ai-token",
			Usage:   "API key for the model services",
			Value:   "none",
			EnvVars: []string{"DOCREVIEW_AI_TOKEN"},
		},
		&cli.IntFlag{
			Name:  "embedding-dim",
			Usage: "Dimensionality of the embedding model",
			Value: 768,
		},
		&cli.StringFlag{
			Name:    "pgvector-dsn",
			Usage:   "Postgres DSN for the pgvector index (BadgerDB index when empty)",
			EnvVars: []string{"DOCREVIEW_PGVECTOR_DSN"},
		},
	}
}

func buildAIConfig(c *cli.Context) (*ai.Config, error) {
	chatHost := c.String("chat-host")
	if chatHost == "" {
		chatHost = c.String("embedding-host")
	}

	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithChatHost(chatHost),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithToken(c.String("ai-token")),
		ai.WithEmbeddingDim(c.Int("embedding-dim")),
	)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

// openIndex selects the vector index backend: pgvector when a DSN is given,
// otherwise BadgerDB sharing the provided backend. backend may be nil only
// when the DSN is set.
func openIndex(ctx context.Context, c *cli.Context, backend *badger.Backend) (index.Index, error) {
	if dsn := c.String("pgvector-dsn"); dsn != "" {
		return pgvector.Open(ctx, dsn)
	}
	if backend == nil {
		return nil, errors.New("either --db or --pgvector-dsn is required")
	}
	return badgerindex.New(backend), nil
}

func workerCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	docs, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	questions, err := badger.NewQuestionRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create question repository: %w", err)
	}
	sessions, err := badger.NewSessionRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create session repository: %w", err)
	}

	aiConfig, err := buildAIConfig(c)
	if err != nil {
		return err
	}
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	defer provider.Close()

	idx, err := openIndex(ctx, c, backend)
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.EnsureCollection(ctx, aiConfig.EmbeddingDim); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	blobs, err := s3.NewStore(ctx, s3.Config{
		AccessKey: c.String("s3-access-key"),
		SecretKey: c.String("s3-secret-key"),
		Region:    c.String("s3-region"),
		Bucket:    c.String("s3-bucket"),
		Endpoint:  c.String("s3-endpoint"),
	})
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	worker, err := pipeline.NewWorker(blobs, provider, idx, docs,
		pipeline.WithReview(questions, sessions),
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	q := queue.New(backend)
	defer q.Close()

	consumer, err := queue.NewConsumer(q, worker.Process,
		queue.WithWorkers(c.Int("workers")),
		queue.WithMaxAttempts(c.Int("max-attempts")),
		queue.WithJobTimeout(c.Duration("job-timeout")),
	)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("worker started",
		"db", c.String("db"),
		"workers", c.Int("workers"),
		"bucket", c.String("s3-bucket"))

	err = consumer.Run(ctx)
	consumer.Release()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consumer failed: %w", err)
	}

	slog.Info("worker stopped")
	return nil
}

// seedQuestionEntry is the JSON shape of one question in the seed file.
type seedQuestionEntry struct {
	Text       string `json:"text"`
	CategoryID string `json:"categoryId"`
}

func seedQuestionsCommand(c *cli.Context) error {
	ctx := context.Background()

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read question file: %w", err)
	}

	var entries []seedQuestionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse question file: %w", err)
	}
	if len(entries) == 0 {
		return errors.New("question file contains no questions")
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewQuestionRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create question repository: %w", err)
	}
	defer repo.Close()

	ownerID := c.String("owner-id")
	questions := make([]*core.EvaluationQuestion, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.Text) == "" {
			return fmt.Errorf("question %d has empty text", i)
		}
		questions = append(questions, &core.EvaluationQuestion{
			Text:       entry.Text,
			CategoryID: entry.CategoryID,
			OwnerID:    ownerID,
		})
	}

	seeded, err := repo.SeedQuestions(ctx, questions...)
	if err != nil {
		return fmt.Errorf("failed to seed questions: %w", err)
	}

	fmt.Printf("Seeded %d questions for owner %s\n", len(seeded), ownerID)
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	defer repo.Close()

	docs, err := repo.ListDocumentsByChat(ctx, c.String("chat-id"))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents found")
		return nil
	}

	for _, doc := range docs {
		detail := ""
		switch {
		case doc.Error != "":
			detail = " error=" + doc.Error
		case doc.Note != "":
			detail = " note=" + doc.Note
		}
		missing := ""
		if len(doc.MissingQuestionIDs) > 0 {
			missing = fmt.Sprintf(" unanswerable=%d", len(doc.MissingQuestionIDs))
		}
		fmt.Printf("%s  %-40s %-10s%s%s\n",
			doc.UploadedAt.Format(time.RFC3339), doc.FileName, doc.Status, detail, missing)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	var backend *badger.Backend
	if dbPath := c.String("db"); dbPath != "" {
		var err error
		backend, err = badger.OpenBackend(dbPath, false)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer backend.Close()
	}

	idx, err := openIndex(ctx, c, backend)
	if err != nil {
		return err
	}
	defer idx.Close()

	aiConfig, err := buildAIConfig(c)
	if err != nil {
		return err
	}
	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return errors.New("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return errors.New("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return errors.New("max-retries must be greater than 0")
	}

	reindexer := reindex.NewReindexer(idx, embedder, config, os.Stderr)

	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
