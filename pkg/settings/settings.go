// Package settings holds the singleton index/RAG settings described in
// spec.md §3 (S), plus the preset/environment resolution described in §6.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// Preset selects a configuration preset per spec.md §6.
type Preset string

const (
	Development Preset = "development"
	Production  Preset = "production"
	Testing     Preset = "testing"
)

// Settings is the singleton §3 "Index settings (S)" / "RAG settings (S)"
// record. Index settings and RAG settings share a schema in this
// implementation since every field they define overlaps exactly.
type Settings struct {
	ChunkSize          int     `yaml:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	DefaultTopK        int     `yaml:"default_top_k"`
	MinRelevanceScore  float64 `yaml:"min_relevance_score"`
	MaxContextLength   int     `yaml:"max_context_length"`
	HistoryWindow      int     `yaml:"history_window"`
	SystemPrompt       string  `yaml:"system_prompt"`
	AdditionalRules    string  `yaml:"additional_rules"`
	ContextWindow      int     `yaml:"context_window"`
	MinOutputTokens    int     `yaml:"min_output_tokens"`
	MaxOutputTokens    int     `yaml:"max_output_tokens"`
	Stops              []string `yaml:"stops"`
}

// Default returns the baseline settings used when nothing overrides them,
// tuned per preset the way the teacher's config.RuntimeConfig varies
// defaults by environment.
func Default(preset Preset) Settings {
	s := Settings{
		ChunkSize:         1000,
		ChunkOverlap:      200,
		EmbeddingModel:    "local/default",
		DefaultTopK:       5,
		MinRelevanceScore: 0.0,
		MaxContextLength:  4000,
		HistoryWindow:     10,
		SystemPrompt:      "You are a helpful on-device assistant.",
		ContextWindow:     8192,
		MinOutputTokens:   64,
		MaxOutputTokens:   1024,
		Stops:             []string{"</s>", "<|endoftext|>", "\nUser:"},
	}

	switch preset {
	case Testing:
		s.ChunkSize = 200
		s.ChunkOverlap = 20
		s.ContextWindow = 1024
		s.MaxOutputTokens = 128
	case Production:
		s.MaxOutputTokens = 2048
	}

	return s
}

// Manager owns the current settings and notifies listeners (e.g. the vector
// store, which must invalidate on embedding-model change per spec.md §4.4)
// when they change.
type Manager struct {
	current   Settings
	listeners []func(old, new Settings)
}

// NewManager creates a settings manager seeded from preset and optionally a
// YAML override file.
func NewManager(preset Preset, overridePath string) (*Manager, error) {
	s := Default(preset)

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, fmt.Sprintf("failed to read settings override %q", overridePath), err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, qerrors.Wrap(qerrors.InputInvalid, fmt.Sprintf("failed to parse settings override %q", overridePath), err)
		}
	}

	return &Manager{current: s}, nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	return m.current
}

// OnChange registers a listener invoked synchronously after Update.
func (m *Manager) OnChange(fn func(old, new Settings)) {
	m.listeners = append(m.listeners, fn)
}

// Update replaces the current settings and fires listeners.
func (m *Manager) Update(next Settings) {
	old := m.current
	m.current = next
	for _, fn := range m.listeners {
		fn(old, next)
	}
}

// EmbeddingModelChanged reports whether next's embedding model identifier
// differs from old's, the trigger for the vector-collection invalidation
// described in spec.md §4.4.
func EmbeddingModelChanged(old, next Settings) bool {
	return old.EmbeddingModel != next.EmbeddingModel
}
