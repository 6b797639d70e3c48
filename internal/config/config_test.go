package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Download.TimeoutSeconds != defaultDownloadTimeout {
		t.Fatalf("timeout = %d, want %d", cfg.Download.TimeoutSeconds, defaultDownloadTimeout)
	}
	if got := cfg.Transcription.BackendOrder; len(got) != 3 || got[0] != "openai" {
		t.Fatalf("backend order = %v", got)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
temp_dir = "` + filepath.Join(dir, "tmp") + `"

[download]
max_retries = 1
accepted_types = [".MP3", "ogg", "mp3", ""]

[transcription]
language = "EN"
backend_order = ["local"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Download.MaxRetries != 1 {
		t.Fatalf("max_retries = %d", cfg.Download.MaxRetries)
	}
	if got := strings.Join(cfg.Download.AcceptedTypes, ","); got != "mp3,ogg" {
		t.Fatalf("accepted_types = %q", got)
	}
	if cfg.Transcription.Language != "en" {
		t.Fatalf("language = %q", cfg.Transcription.Language)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q", cfg.Logging.Format)
	}
	if !filepath.IsAbs(cfg.Paths.TempDir) {
		t.Fatalf("temp_dir not absolute: %q", cfg.Paths.TempDir)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Download.TimeoutSeconds = 0
	cfg.Transcription.BackendOrder = []string{"carrier-pigeon"}
	cfg.Summary.Enabled = true
	cfg.Summary.APIKey = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, fragment := range []string{"timeout_seconds", "carrier-pigeon", "summary.api_key"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample file not found after CreateSample")
	}
	if cfg.Download.MaxRetries != defaultMaxRetries {
		t.Fatalf("sample max_retries = %d", cfg.Download.MaxRetries)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/podscribe")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "podscribe") {
		t.Fatalf("expandPath = %q", got)
	}
}
