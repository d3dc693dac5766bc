package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortText(t *testing.T) {
	s := NewSplitter()

	chunks, err := s.Split("a short document")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestSplit_WhitespaceOnly(t *testing.T) {
	s := NewSplitter()

	chunks, err := s.Split("   \n\t  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_LongTextProducesOverlappingChunks(t *testing.T) {
	s := NewSplitter()

	// 200 words of ~5 chars each, no paragraph structure.
	text := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 50))

	chunks, err := s.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len(c.Text), DefaultChunkSize)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("alpha beta gamma delta epsilon ", 40)

	first, err := s.Split(text)
	require.NoError(t, err)
	second, err := s.Split(text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplit_CustomSize(t *testing.T) {
	s := NewSplitter(WithChunkSize(40), WithChunkOverlap(10))

	chunks, err := s.Split(strings.Repeat("word ", 60))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 40)
	}
}

func TestSplitPages_PageLocalIndices(t *testing.T) {
	s := NewSplitter(WithChunkSize(40), WithChunkOverlap(0))

	pages := []string{
		strings.TrimSpace(strings.Repeat("page one text ", 8)),
		"",
		"short third page",
	}

	chunks, err := s.SplitPages(pages)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Indices restart at 0 on each page.
	perPage := map[int]int{}
	for _, c := range chunks {
		assert.Equal(t, perPage[c.Page], c.Index)
		perPage[c.Page]++
	}
	assert.Greater(t, perPage[1], 1)

	// The empty page contributes nothing; its neighbours keep their numbers.
	assert.Zero(t, perPage[2])
	last := chunks[len(chunks)-1]
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, 0, last.Index)
	assert.Equal(t, "short third page", last.Text)
}

func TestSplitPages_NoChunkStraddlesPages(t *testing.T) {
	s := NewSplitter(WithChunkSize(1000), WithChunkOverlap(0))

	pages := []string{"first page body", "second page body"}
	chunks, err := s.SplitPages(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[1].Page)
}

func TestSplitPages_AllEmpty(t *testing.T) {
	s := NewSplitter()

	chunks, err := s.SplitPages([]string{"", "  ", "\n"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
