package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedBatchDeterministic(t *testing.T) {
	c := New(LocalLoader(64))

	v1, err := c.EmbedBatch(context.Background(), "test-model", []string{"hello world", "hello world"})
	require.NoError(t, err)
	require.Len(t, v1, 2)
	assert.Equal(t, v1[0], v1[1])
}

func TestEmbedBatchDifferentModelsDiffer(t *testing.T) {
	c := New(LocalLoader(64))

	v1, err := c.Embed(context.Background(), "model-a", "hello world")
	require.NoError(t, err)

	v2, err := c.Embed(context.Background(), "model-b", "hello world")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestEmbedBatchSplitsAcrossBatchBoundary(t *testing.T) {
	c := New(LocalLoader(32))

	texts := make([]string, 75) // spans three batches of <= 32
	for i := range texts {
		texts[i] = "text"
	}

	vecs, err := c.EmbedBatch(context.Background(), "test-model", texts)
	require.NoError(t, err)
	require.Len(t, vecs, 75)
	for _, v := range vecs {
		assert.Equal(t, vecs[0], v)
	}
}

func TestEmbedReloadsOnModelChange(t *testing.T) {
	c := New(LocalLoader(16))

	require.NoError(t, c.EnsureLoaded("model-a"))
	assert.Equal(t, 16, c.Dim())

	require.NoError(t, c.EnsureLoaded("model-b"))
	assert.Equal(t, 16, c.Dim())
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	c := New(LocalLoader(16))
	vecs, err := c.EmbedBatch(context.Background(), "test-model", nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
