package mock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatModelMatchesQuestionLineOnly(t *testing.T) {
	chat := NewMockChatModel()
	chat.RespondWith("backups", "Answer: Yes\nReason: stated.")
	chat.RespondWith("certification", "Answer: -1\nReason: no evidence.")

	// The excerpts mention backups; the question does not. The scripted
	// backups response must not win on an excerpt match.
	prompt := "Document excerpts:\n\n" +
		"[1] Nightly backups are taken.\n\n" +
		"Question: Does the vendor hold certification?"

	response, err := chat.Generate(context.Background(), "system", prompt)
	require.NoError(t, err)
	assert.Equal(t, "Answer: -1\nReason: no evidence.", response)
}

func TestChatModelMatchesWholePromptWithoutMarker(t *testing.T) {
	chat := NewMockChatModel()
	chat.RespondWith("backups", "Answer: Yes\nReason: stated.")

	response, err := chat.Generate(context.Background(), "system", "tell me about backups")
	require.NoError(t, err)
	assert.Equal(t, "Answer: Yes\nReason: stated.", response)
}

func TestChatModelFailureMatchesQuestionLine(t *testing.T) {
	chat := NewMockChatModel()
	chat.FailWith("encryption", assert.AnError)
	chat.DefaultResponse = "Answer: No\nReason: not addressed."

	prompt := "Document excerpts:\n\n[1] Encryption at rest is enabled.\n\n" +
		"Question: Are backups documented?"
	response, err := chat.Generate(context.Background(), "system", prompt)
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultResponse, response)

	_, err = chat.Generate(context.Background(), "system",
		"Document excerpts:\n\n[1] text\n\nQuestion: Is encryption enabled?")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestEmbedderConcurrentCalls(t *testing.T) {
	embedder := NewMockEmbedder()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := embedder.EmbedText(context.Background(), "concurrent text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, embedder.CallCount())
}
