package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// Handle is the process-wide LLM handle C11 owns (spec.md §5: "the LLM
// handle is a single process-wide resource; only one generation runs at a
// time"). Unlike pkg/embed.Client, the lock is held for the *entire*
// completion call, not released between calls, matching the teacher's
// avoidance of sharing a model handle across concurrent requests while
// still reloading lazily on identity change.
type Handle struct {
	mu     sync.Mutex
	model  Model
	loader Loader
}

// NewHandle creates a Handle around a Loader. The model loads lazily on
// first use.
func NewHandle(loader Loader) *Handle {
	return &Handle{loader: loader}
}

// EnsureLoaded loads (or reloads, if modelID changed) the underlying model.
func (h *Handle) EnsureLoaded(ctx context.Context, modelID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ensureLoadedLocked(ctx, modelID)
}

func (h *Handle) ensureLoadedLocked(ctx context.Context, modelID string) error {
	if h.model != nil && h.model.ModelID() == modelID {
		return nil
	}
	if h.model != nil {
		slog.Info("generation model changed, reloading", "old_model", h.model.ModelID(), "new_model", modelID)
		_ = h.model.Close()
		h.model = nil
	}

	m, err := h.loader(ctx)
	if err != nil {
		return qerrors.Wrap(qerrors.ModelFailure, fmt.Sprintf("failed to load generation model %q", modelID), err)
	}
	h.model = m
	return nil
}

// ContextWindow returns the loaded model's context window, or 0 if unloaded.
func (h *Handle) ContextWindow() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return 0
	}
	return h.model.ContextWindow()
}

// Complete serializes one completion call through the handle's lock for the
// duration of the call (spec.md §5's single-process-wide-resource rule),
// releasing it only once the returned TokenStream is closed.
func (h *Handle) Complete(ctx context.Context, modelID, prompt string, opts CompletionOptions) (TokenStream, error) {
	h.mu.Lock()
	if err := h.ensureLoadedLocked(ctx, modelID); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	model := h.model

	stream, err := model.Complete(ctx, prompt, opts)
	if err != nil {
		h.mu.Unlock()
		return nil, qerrors.Wrap(qerrors.ModelFailure, "completion failed", err)
	}
	return &lockedTokenStream{inner: stream, unlock: h.mu.Unlock}, nil
}

// Close releases the loaded model, if any.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return nil
	}
	err := h.model.Close()
	h.model = nil
	return err
}

// lockedTokenStream holds the Handle's lock for as long as the stream is in
// use, releasing it exactly once on Close.
type lockedTokenStream struct {
	inner      TokenStream
	unlock     func()
	unlockOnce sync.Once
}

func (s *lockedTokenStream) Next() (string, bool, error) {
	return s.inner.Next()
}

func (s *lockedTokenStream) Close() error {
	err := s.inner.Close()
	s.unlockOnce.Do(s.unlock)
	return err
}
