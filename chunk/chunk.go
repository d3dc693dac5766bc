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

package chunk

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults for the splitter. Sizes are in characters, not tokens; the
// overlap carries context across chunk boundaries.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunk is one piece of a document ready for embedding. Page is 1-based for
// paginated sources and 0 when the source has no page structure. Index is
// the chunk's position within the whole document.
type Chunk struct {
	Text  string
	Page  int
	Index int
}

// Splitter produces overlapping text chunks. Splitting is deterministic:
// the same input always yields the same chunks in the same order.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// Option configures a Splitter.
type Option func(*config)

type config struct {
	chunkSize    int
	chunkOverlap int
}

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *config) {
		c.chunkSize = size
	}
}

// WithChunkOverlap sets the number of characters shared between
// neighbouring chunks.
func WithChunkOverlap(overlap int) Option {
	return func(c *config) {
		c.chunkOverlap = overlap
	}
}

// NewSplitter creates a Splitter. Paragraph breaks are preferred split
// points, then line breaks, then word boundaries.
func NewSplitter(opts ...Option) *Splitter {
	cfg := config{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	inner := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.chunkSize),
		textsplitter.WithChunkOverlap(cfg.chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
	return &Splitter{inner: inner}
}

// Split chunks a single block of text. Whitespace-only pieces are dropped.
// The returned chunks have Page set to 0.
func (s *Splitter) Split(text string) ([]Chunk, error) {
	return s.split(text, 0, 0)
}

// SplitPages chunks each page independently so no chunk straddles a page
// boundary. Page numbers are 1-based; empty pages yield no chunks. Index
// restarts at 0 on every page.
func (s *Splitter) SplitPages(pages []string) ([]Chunk, error) {
	var chunks []Chunk
	for i, page := range pages {
		pageChunks, err := s.split(page, i+1, 0)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", i+1, err)
		}
		chunks = append(chunks, pageChunks...)
	}
	return chunks, nil
}

func (s *Splitter) split(text string, page, startIndex int) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pieces, err := s.inner.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:  piece,
			Page:  page,
			Index: startIndex + len(chunks),
		})
	}
	return chunks, nil
}
