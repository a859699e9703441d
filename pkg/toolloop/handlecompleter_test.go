package toolloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edombelayneh/Qlippy/pkg/generation"
)

func TestHandleCompleterDrainsFullOutput(t *testing.T) {
	h := generation.NewHandle(generation.LocalLoader("local/echo", 4096))
	c := &HandleCompleter{Handle: h, ModelID: "local/echo"}

	out, err := c.Complete(context.Background(), "Human: one two three\nAssistant:")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
