package generation

import "context"

// TokenStream is the lazy sequence of raw token fragments a Model yields
// for one completion request, grounded on the teacher's
// `chat.MessageStream` shape (`provider.Provider.CreateChatCompletionStream`)
// but narrowed to plain text since this runtime speaks to the model over a
// single prompt string rather than a chat-message list.
type TokenStream interface {
	// Next blocks for the next token fragment. It returns ok=false once the
	// stream is exhausted (err is nil) or failed (err is non-nil).
	Next() (token string, ok bool, err error)
	Close() error
}

// Model is the process-wide LLM handle C11 owns. Options mirror the
// per-request knobs spec.md §4.7 threads through (stop sequences and the
// clamped max_tokens).
type Model interface {
	ModelID() string
	ContextWindow() int
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (TokenStream, error)
	Close() error
}

// CompletionOptions carries the per-request generation knobs.
type CompletionOptions struct {
	MaxTokens int
	Stops     []string
}

// Loader constructs a Model, mirroring pkg/embed.Loader's lazy-reload shape.
type Loader func(ctx context.Context) (Model, error)
