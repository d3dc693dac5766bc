package memory

import (
	"context"
	"testing"

	"github.com/poiesic/docreview/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "uploads/chat-1/a.pdf", []byte("pdf bytes"), "application/pdf"))

	data, err := s.Get(ctx, "uploads/chat-1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), "text/plain"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, blob.ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("abc"), "text/plain"))

	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	data[0] = 'x'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}
