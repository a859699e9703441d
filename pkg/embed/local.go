package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// LocalHashProvider is a dependency-free stand-in for a real local embedding
// model: it projects each text into a fixed-dimension unit vector by hashing
// each whitespace-delimited token into a bucket, matching the teacher's pattern of
// a local, no-network default behind a pluggable Provider interface
// (spec.md §4.3: "no network calls are made for embedding"). It is
// deterministic for identical input and model identity, satisfying the
// "same embedding model + same text -> same vector" invariant.
type LocalHashProvider struct {
	modelID string
	dim     int
}

// NewLocalHashProvider constructs a LocalHashProvider for modelID with the
// given output dimensionality.
func NewLocalHashProvider(modelID string, dim int) *LocalHashProvider {
	if dim <= 0 {
		dim = 384
	}
	return &LocalHashProvider{modelID: modelID, dim: dim}
}

// LocalLoader is a Loader that always returns a LocalHashProvider, usable
// wherever a real model binding isn't available (tests, offline dev).
func LocalLoader(dim int) Loader {
	return func(modelID string) (Provider, error) {
		return NewLocalHashProvider(modelID, dim), nil
	}
}

func (p *LocalHashProvider) ModelID() string { return p.modelID }
func (p *LocalHashProvider) Dim() int         { return p.dim }
func (p *LocalHashProvider) Close() error     { return nil }

func (p *LocalHashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorize(t)
	}
	return out, nil
}

// vectorize hashes each whitespace-delimited token (salted with the model
// ID, so different models never collide on the same vector) into one of
// p.dim buckets and accumulates a signed count there, then L2-normalizes.
// This is a bag-of-hashed-tokens projection, not a learned embedding, but it
// is stable, collision-tolerant, and cheap enough to run inline.
func (p *LocalHashProvider) vectorize(text string) []float32 {
	vec := make([]float32, p.dim)
	token := make([]byte, 0, 32)

	flush := func() {
		if len(token) == 0 {
			return
		}
		h := sha256.New()
		h.Write([]byte(p.modelID))
		h.Write([]byte{0})
		h.Write(token)
		sum := h.Sum(nil)

		bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(p.dim)
		sign := float32(1)
		if sum[8]&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
		token = token[:0]
	}

	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			flush()
			continue
		}
		token = append(token, []byte(string(r))...)
	}
	flush()

	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
