// Package embed implements C5: the pluggable embedding client that turns
// chunk text into dense vectors (spec.md §4.3).
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

const maxBatchSize = 32 // spec.md §5: "batches of up to 32 texts are submitted at once"

// Provider is a pluggable local embedding backend. Implementations MUST be
// deterministic for identical inputs (spec.md §4.3).
type Provider interface {
	// ModelID identifies the loaded model, used to detect identity changes.
	ModelID() string
	Dim() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// Loader constructs a Provider for a given model identifier, the seam a real
// local-model binding plugs into.
type Loader func(modelID string) (Provider, error)

// Client is the process-wide embedding handle (spec.md §5: "similarly
// single-instance but, being fast, shared under a lightweight lock"). It
// reloads its Provider lazily whenever the configured model identity
// changes.
type Client struct {
	mu       sync.Mutex
	provider Provider
	loader   Loader
	maxConc  int
}

// New creates a Client around a Loader. The provider is loaded lazily on
// first EnsureLoaded/Embed call.
func New(loader Loader) *Client {
	return &Client{loader: loader, maxConc: 4}
}

// EnsureLoaded loads (or reloads, if modelID changed) the provider.
func (c *Client) EnsureLoaded(modelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureLoadedLocked(modelID)
}

func (c *Client) ensureLoadedLocked(modelID string) error {
	if c.provider != nil && c.provider.ModelID() == modelID {
		return nil
	}

	if c.provider != nil {
		slog.Info("embedding model changed, reloading provider",
			"old_model", c.provider.ModelID(), "new_model", modelID)
		_ = c.provider.Close()
		c.provider = nil
	}

	p, err := c.loader(modelID)
	if err != nil {
		return qerrors.Wrap(qerrors.ModelFailure, fmt.Sprintf("failed to load embedding model %q", modelID), err)
	}
	c.provider = p
	return nil
}

// Dim returns the loaded provider's vector dimensionality, or 0 if unloaded.
func (c *Client) Dim() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil {
		return 0
	}
	return c.provider.Dim()
}

// Embed embeds a single string.
func (c *Client) Embed(ctx context.Context, modelID, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, modelID, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds an arbitrary number of texts, splitting into batches of
// at most maxBatchSize and fanning them out with a bounded concurrency
// (spec.md §5), matching the teacher's errgroup-bounded batch pattern.
func (c *Client) EmbedBatch(ctx context.Context, modelID string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	if err := c.ensureLoadedLocked(modelID); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	provider := c.provider
	c.mu.Unlock()

	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConc)

	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		start, end := start, end
		g.Go(func() error {
			batch := texts[start:end]

			c.mu.Lock()
			vecs, err := provider.Embed(gctx, batch)
			c.mu.Unlock()
			if err != nil {
				return qerrors.Wrap(qerrors.ModelFailure, "embedding batch failed", err)
			}
			if len(vecs) != len(batch) {
				return qerrors.New(qerrors.ModelFailure, fmt.Sprintf("embedding count mismatch: got %d for %d texts", len(vecs), len(batch)))
			}

			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Close releases the loaded provider, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil {
		return nil
	}
	err := c.provider.Close()
	c.provider = nil
	return err
}
