package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, levelVar))
	logger = logger.With(String(FieldComponent, "downloader"))
	logger.Info("download complete", Int64("bytes", 2048), String("path", "/tmp/a b.mp3"))

	line := buf.String()
	if !strings.Contains(line, "INFO downloader: download complete") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "bytes=2048") {
		t.Fatalf("missing bytes attr: %q", line)
	}
	if !strings.Contains(line, `path="/tmp/a b.mp3"`) {
		t.Fatalf("expected quoted path attr: %q", line)
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)

	logger := slog.New(newConsoleHandler(&buf, levelVar))
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be suppressed: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, levelVar)).WithGroup("retry")
	logger.Info("attempt", Int("count", 3))

	if !strings.Contains(buf.String(), "retry.count=3") {
		t.Fatalf("expected grouped key, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNoopHandlerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
}
