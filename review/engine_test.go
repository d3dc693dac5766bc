package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docreview/ai/mock"
	"github.com/poiesic/docreview/core"
	badgerindex "github.com/poiesic/docreview/index/badger"
	storagebadger "github.com/poiesic/docreview/storage/badger"
)

func newTestEngine(t *testing.T, chat *mock.MockChatModel) (*Engine, *badgerindex.Index, *mock.MockEmbedder) {
	t.Helper()

	backend, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	idx := badgerindex.New(backend)
	require.NoError(t, idx.EnsureCollection(context.Background(), 8))

	embedder := mock.NewMockEmbedder()
	engine, err := NewEngine(embedder, chat, idx)
	require.NoError(t, err)
	return engine, idx, embedder
}

func indexChunks(t *testing.T, idx *badgerindex.Index, embedder *mock.MockEmbedder, chatID string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	points := make([]core.ChunkPoint, len(texts))
	for i, text := range texts {
		vec, err := embedder.EmbedText(ctx, text)
		require.NoError(t, err)
		points[i] = core.ChunkPoint{
			ID:     chatID + "-" + text[:3],
			Vector: vec,
			Payload: core.ChunkPayload{
				Text:       text,
				DocumentID: "doc-1",
				ChatID:     chatID,
			},
		}
	}
	require.NoError(t, idx.Upsert(ctx, points))
}

func question(text, category string) *core.EvaluationQuestion {
	return &core.EvaluationQuestion{
		Id:         core.IDFromContent(text),
		Text:       text,
		CategoryID: category,
		OwnerID:    "owner-1",
	}
}

func TestScorePartitionsEveryQuestion(t *testing.T) {
	chat := mock.NewMockChatModel()
	chat.RespondWith("incident response", "Answer: Yes\nReason: section 3 covers it.")
	chat.RespondWith("backups", "Answer: Maybe\nReason: mentioned without detail.")
	chat.RespondWith("certification", "Answer: -1\nReason: no evidence.")

	engine, idx, embedder := newTestEngine(t, chat)
	indexChunks(t, idx, embedder, "chat-1",
		"Our incident response plan is reviewed annually.",
		"Nightly backups are taken.",
	)

	questions := []*core.EvaluationQuestion{
		question("Does the document describe incident response?", "security"),
		question("Are backups documented?", "operations"),
		question("Does the vendor hold certification?", "security"),
	}

	result, err := engine.Score(context.Background(), "chat-1", questions)
	require.NoError(t, err)

	// Every question lands in exactly one set.
	assert.Equal(t, len(questions), len(result.Answers)+len(result.Unanswerable))
	assert.Len(t, result.Answers, 2)
	assert.Len(t, result.Unanswerable, 1)
	assert.Equal(t, questions[2].Id, result.Unanswerable[0])

	for _, answer := range result.Answers {
		switch answer.QuestionID {
		case questions[0].Id:
			assert.Equal(t, ScoreYes, answer.Answer)
			assert.NotEmpty(t, answer.Reasoning)
		case questions[1].Id:
			assert.Equal(t, ScoreMaybe, answer.Answer)
		default:
			t.Fatalf("Unexpected answer for question %d", answer.QuestionID)
		}
	}
}

func TestScoreSingleFailureIsIsolated(t *testing.T) {
	chat := mock.NewMockChatModel()
	chat.FailWith("backups", errors.New("model exploded"))
	chat.DefaultResponse = "Answer: No\nReason: not addressed."

	engine, idx, embedder := newTestEngine(t, chat)
	indexChunks(t, idx, embedder, "chat-1", "General policy text about security.")

	questions := []*core.EvaluationQuestion{
		question("Are backups documented?", "operations"),
		question("Is data encrypted?", "security"),
	}

	result, err := engine.Score(context.Background(), "chat-1", questions)
	require.NoError(t, err)

	assert.Len(t, result.Unanswerable, 1)
	assert.Equal(t, questions[0].Id, result.Unanswerable[0])
	require.Len(t, result.Answers, 1)
	assert.Equal(t, questions[1].Id, result.Answers[0].QuestionID)
	assert.Equal(t, ScoreNo, result.Answers[0].Answer)
}

func TestScoreNoChunksMeansUnanswerable(t *testing.T) {
	chat := mock.NewMockChatModel()
	chat.DefaultResponse = "Answer: Yes\nReason: should never be consulted."

	engine, _, _ := newTestEngine(t, chat)

	questions := []*core.EvaluationQuestion{
		question("Are backups documented?", "operations"),
	}

	// Nothing indexed for this chat.
	result, err := engine.Score(context.Background(), "chat-empty", questions)
	require.NoError(t, err)
	assert.Empty(t, result.Answers)
	assert.Len(t, result.Unanswerable, 1)
	assert.Zero(t, chat.CallCount())
}

func TestScoreUnparseableResponse(t *testing.T) {
	chat := mock.NewMockChatModel()
	chat.DefaultResponse = "I believe the document probably covers this."

	engine, idx, embedder := newTestEngine(t, chat)
	indexChunks(t, idx, embedder, "chat-1", "Some document text.")

	questions := []*core.EvaluationQuestion{
		question("Is data encrypted?", "security"),
	}

	result, err := engine.Score(context.Background(), "chat-1", questions)
	require.NoError(t, err)
	assert.Empty(t, result.Answers)
	assert.Len(t, result.Unanswerable, 1)
}

func TestScoreRetrievalIsChatScoped(t *testing.T) {
	chat := mock.NewMockChatModel()
	chat.DefaultResponse = "Answer: Yes\nReason: found."

	engine, idx, embedder := newTestEngine(t, chat)
	indexChunks(t, idx, embedder, "chat-other", "Backups are documented here.")

	questions := []*core.EvaluationQuestion{
		question("Are backups documented?", "operations"),
	}

	// The only evidence lives in another chat; the question is unanswerable.
	result, err := engine.Score(context.Background(), "chat-1", questions)
	require.NoError(t, err)
	assert.Empty(t, result.Answers)
	assert.Len(t, result.Unanswerable, 1)
}

func TestNewEngineValidation(t *testing.T) {
	chat := mock.NewMockChatModel()
	embedder := mock.NewMockEmbedder()

	backend, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	idx := badgerindex.New(backend)

	_, err = NewEngine(nil, chat, idx)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewEngine(embedder, nil, idx)
	assert.ErrorIs(t, err, ErrChatModelRequired)
	_, err = NewEngine(embedder, chat, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)
}
