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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/docreview/ai"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/index"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer regenerates embeddings for every chunk point in a vector index.
type Reindexer struct {
	idx      index.Index
	embedder ai.Embedder
	config   *Config
	progress io.Writer
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(idx index.Index, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reindexer{
		idx:      idx,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// Run executes the reindexing operation. Every chunk in the index is
// re-embedded from its stored text and written back in place. The total is
// not known up front, so progress reports a running count and rate.
func (r *Reindexer) Run(ctx context.Context) error {
	fmt.Fprintf(r.progress, "Starting reindexing (batch size: %d)\n", r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, 0, r.config.ReportInterval)
	tracker.Start()

	err := r.idx.Iterate(ctx, r.config.BatchSize, func(points []core.ChunkPoint) error {
		if err := r.processBatch(ctx, points); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		tracker.Increment(len(points))
		return nil
	})

	if err != nil {
		return err
	}

	tracker.Finish()

	processed := tracker.Processed()
	if processed == 0 {
		fmt.Fprintf(r.progress, "No chunks found in index (0 chunks)\n")
		return nil
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}

// processBatch embeds the batch's chunk texts and upserts the points with
// their new vectors. Both calls retry with exponential backoff.
func (r *Reindexer) processBatch(ctx context.Context, points []core.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}

	texts := make([]string, len(points))
	for i, point := range points {
		texts[i] = point.Payload.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = r.embedder.EmbedTexts(ctx, texts)
		return err
	}, r.config.MaxRetries, r.config.RetryDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}

	if len(embeddings) != len(points) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(points), len(embeddings))
	}

	for i := range points {
		points[i].Vector = embeddings[i]
	}

	err = RetryWithBackoff(ctx, func() error {
		return r.idx.Upsert(ctx, points)
	}, r.config.MaxRetries, r.config.RetryDelay)

	if err != nil {
		return fmt.Errorf("failed to upsert points after %d attempts: %w", r.config.MaxRetries, err)
	}

	return nil
}
