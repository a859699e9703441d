package generation

import (
	"context"
	"strings"
	"sync"
)

// LocalEchoModel is a dependency-free stand-in for a real on-device model
// binding, mirroring pkg/embed.LocalHashProvider: same seam, same
// acknowledgment that the actual weights are outside this runtime's scope
// (spec.md §2 Non-goals). It takes the prompt from its last "Human:" marker
// on, splits that by whitespace, and streams those words back one at a time
// (at most MaxTokens of them, when set), so callers can
// exercise the full prompt-composition and streaming contract without a
// real model attached.
type LocalEchoModel struct {
	id            string
	contextWindow int
}

// NewLocalEchoModel constructs a LocalEchoModel with the given context
// window (spec.md §4.7's `context_window` used by the max_tokens clamp).
func NewLocalEchoModel(modelID string, contextWindow int) *LocalEchoModel {
	return &LocalEchoModel{id: modelID, contextWindow: contextWindow}
}

func (m *LocalEchoModel) ModelID() string    { return m.id }
func (m *LocalEchoModel) ContextWindow() int { return m.contextWindow }
func (m *LocalEchoModel) Close() error       { return nil }

func (m *LocalEchoModel) Complete(ctx context.Context, prompt string, opts CompletionOptions) (TokenStream, error) {
	words := strings.Fields(lastLine(prompt))
	if len(words) == 0 {
		words = []string{"ok."}
	}
	if opts.MaxTokens > 0 && len(words) > opts.MaxTokens {
		words = words[:opts.MaxTokens]
	}
	return &localTokenStream{words: words}, nil
}

func lastLine(s string) string {
	idx := strings.LastIndex(s, "Human:")
	if idx == -1 {
		return s
	}
	return s[idx:]
}

type localTokenStream struct {
	mu   sync.Mutex
	words []string
	pos   int
}

func (s *localTokenStream) Next() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.words) {
		return "", false, nil
	}
	tok := s.words[s.pos]
	if s.pos > 0 {
		tok = " " + tok
	}
	s.pos++
	return tok, true, nil
}

func (s *localTokenStream) Close() error { return nil }

// LocalLoader builds the process-wide Loader for LocalEchoModel.
func LocalLoader(modelID string, contextWindow int) Loader {
	return func(ctx context.Context) (Model, error) {
		return NewLocalEchoModel(modelID, contextWindow), nil
	}
}
