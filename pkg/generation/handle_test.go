package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainTokens(t *testing.T, stream TokenStream) []string {
	t.Helper()
	var toks []string
	for {
		tok, ok, err := stream.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		toks = append(toks, tok)
	}
	require.NoError(t, stream.Close())
	return toks
}

func TestHandleCompletesAndReleasesLock(t *testing.T) {
	h := NewHandle(LocalLoader("model-a", 4096))
	ctx := context.Background()

	stream, err := h.Complete(ctx, "model-a", "Human: hello\nAssistant:", CompletionOptions{})
	require.NoError(t, err)
	toks := drainTokens(t, stream)
	assert.NotEmpty(t, toks)

	// Lock must be released after Close, so a second call doesn't deadlock.
	stream2, err := h.Complete(ctx, "model-a", "Human: hi again\nAssistant:", CompletionOptions{})
	require.NoError(t, err)
	drainTokens(t, stream2)
}

func TestHandleReloadsOnModelChange(t *testing.T) {
	calls := 0
	loader := func(ctx context.Context) (Model, error) {
		calls++
		return NewLocalEchoModel("model-a", 4096), nil
	}
	h := NewHandle(loader)
	ctx := context.Background()

	require.NoError(t, h.EnsureLoaded(ctx, "model-a"))
	require.NoError(t, h.EnsureLoaded(ctx, "model-a"))
	assert.Equal(t, 1, calls)

	require.NoError(t, h.EnsureLoaded(ctx, "model-b"))
	assert.Equal(t, 2, calls)
}

func TestLocalEchoModelRespectsMaxTokens(t *testing.T) {
	m := NewLocalEchoModel("local/echo", 4096)
	stream, err := m.Complete(context.Background(), "Human: one two three four five\nAssistant:", CompletionOptions{MaxTokens: 2})
	require.NoError(t, err)
	toks := drainTokens(t, stream)
	assert.Len(t, toks, 2)
}
