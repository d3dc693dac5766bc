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

package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docreview/ai"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/index"
)

const defaultTopK = 5

var (
	// ErrEmbedderRequired indicates the engine was built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrChatModelRequired indicates the engine was built without a chat model.
	ErrChatModelRequired = errors.New("chat model is required")

	// ErrIndexRequired indicates the engine was built without a vector index.
	ErrIndexRequired = errors.New("vector index is required")

	// errNoEvidence marks a question with no retrieved chunks.
	errNoEvidence = errors.New("no chunks retrieved")

	// errUnanswerable marks a question the model labeled "-1" or answered
	// in an unparseable shape.
	errUnanswerable = errors.New("question unanswerable")
)

// Result partitions the question set: every question lands in exactly one
// of Answers or Unanswerable.
type Result struct {
	Answers      []core.QuestionAnswer
	Unanswerable []core.ID
}

// Engine scores questions against a chat's indexed chunks.
type Engine struct {
	embedder ai.Embedder
	chat     ai.ChatModel
	idx      index.Index
	topK     int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopK sets how many chunks are retrieved per question. Default is 5.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a scoring engine.
func NewEngine(embedder ai.Embedder, chat ai.ChatModel, idx index.Index, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if chat == nil {
		return nil, ErrChatModelRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	e := &Engine{
		embedder: embedder,
		chat:     chat,
		idx:      idx,
		topK:     defaultTopK,
		logger:   slog.Default().With("component", "review-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Score evaluates every question against the chat's indexed chunks.
// A single question's failure never aborts the pass; the question is
// recorded as unanswerable instead. Score itself only errors on context
// cancellation.
func (e *Engine) Score(ctx context.Context, chatID string, questions []*core.EvaluationQuestion) (*Result, error) {
	result := &Result{}

	for _, question := range questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		answer, err := e.scoreOne(ctx, chatID, question)
		if err != nil {
			if !errors.Is(err, errUnanswerable) && !errors.Is(err, errNoEvidence) {
				e.logger.Warn("question scoring failed",
					"chatId", chatID, "questionId", question.Id, "err", err)
			}
			result.Unanswerable = append(result.Unanswerable, question.Id)
			continue
		}
		result.Answers = append(result.Answers, *answer)
	}

	e.logger.Info("scoring pass finished",
		"chatId", chatID,
		"answered", len(result.Answers),
		"unanswerable", len(result.Unanswerable))
	return result, nil
}

func (e *Engine) scoreOne(ctx context.Context, chatID string, question *core.EvaluationQuestion) (*core.QuestionAnswer, error) {
	vector, err := e.embedder.EmbedText(ctx, question.Text)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := e.idx.Search(ctx, vector, index.Filter{ChatID: chatID}, e.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(hits) == 0 {
		return nil, errNoEvidence
	}

	chunkTexts := make([]string, len(hits))
	for i, hit := range hits {
		chunkTexts[i] = hit.Point.Payload.Text
	}

	response, err := e.chat.Generate(ctx, systemPrompt, buildUserPrompt(question.Text, chunkTexts))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	label, reason, ok := parseResponse(response)
	if !ok {
		e.logger.Debug("unparseable response", "questionId", question.Id, "response", response)
		return nil, errUnanswerable
	}

	score, scored := scoreForLabel(label)
	if !scored {
		return nil, errUnanswerable
	}

	return &core.QuestionAnswer{
		QuestionID: question.Id,
		Answer:     score,
		Reasoning:  reason,
	}, nil
}
