// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"podscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.NotesDir = filepath.Join(base, "notes")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Download.MaxRetries = 1
	cfg.Transcription.BackendOrder = []string{"none"}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBackendOrder overrides the transcription fallback list.
func WithBackendOrder(names ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcription.BackendOrder = names
	}
}

// WithSummary enables summarization with the given key.
func WithSummary(apiKey string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Summary.Enabled = true
		cfg.Summary.APIKey = apiKey
	}
}
