package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscribe/internal/config"
)

func setupCLIConfig(t *testing.T) (string, *config.Config) {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{}
	cfg.Paths.NotesDir = filepath.Join(base, "notes")
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(
		"[paths]\nnotes_dir = %q\ntemp_dir = %q\ndata_dir = %q\nlog_dir = %q\n\n[transcription]\nbackend_order = [\"none\"]\n",
		cfg.Paths.NotesDir,
		cfg.Paths.TempDir,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, cfg
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
