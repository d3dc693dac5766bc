package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docreview/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client llms.Model
	logger *slog.Logger
}

// newChatModel is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, ai.ClassifyError(err)
	}

	return &ChatModel{
		client: client,
		logger: slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatModel creates a new chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// Generate returns the model's text response for the given prompts.
// Temperature is pinned to zero: scoring needs reproducible labels, not
// creative prose.
func (m *ChatModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userPrompt),
			},
		},
	}

	response, err := m.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		m.logger.Error("failed to generate content", "err", err)
		return "", ai.ClassifyError(err)
	}

	if len(response.Choices) < 1 {
		m.logger.Debug("no choices returned from model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
