package toolloop

import (
	"context"
	"strings"

	"github.com/edombelayneh/Qlippy/pkg/generation"
)

// HandleCompleter adapts a pkg/generation.Handle into a Completer by
// draining its TokenStream into one string, since the state machine only
// ever needs the complete model message at the LLM -> maybe-TOOL boundary.
type HandleCompleter struct {
	Handle    *generation.Handle
	ModelID   string
	MaxTokens int
	Stops     []string
}

func (c *HandleCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	stream, err := c.Handle.Complete(ctx, c.ModelID, prompt, generation.CompletionOptions{
		MaxTokens: c.MaxTokens,
		Stops:     c.Stops,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		tok, ok, err := stream.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}
