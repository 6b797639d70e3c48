package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/services"
)

// WhisperCpp drives a native whisper.cpp binary against a local model file.
type WhisperCpp struct {
	cfg           config.WhisperCppBackend
	lookPath      func(string) (string, error)
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperCpp constructs the native backend.
func NewWhisperCpp(cfg config.WhisperCppBackend) *WhisperCpp {
	return &WhisperCpp{cfg: cfg, lookPath: exec.LookPath}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperCpp) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

// Name implements Backend.
func (w *WhisperCpp) Name() string { return "whispercpp" }

// Available implements Backend.
func (w *WhisperCpp) Available(ctx context.Context) error {
	if strings.TrimSpace(w.cfg.ModelPath) == "" {
		return services.Wrap(services.ErrBackendUnavailable, "whispercpp", "available", "model_path not configured", nil)
	}
	if _, err := os.Stat(w.cfg.ModelPath); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, "whispercpp", "available", w.cfg.ModelPath, err)
	}
	if w.commandRunner != nil {
		return nil
	}
	if _, err := w.lookPath(w.cfg.Binary); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, "whispercpp", "available",
			fmt.Sprintf("%s not on PATH", w.cfg.Binary), err)
	}
	return nil
}

// Transcribe implements Backend.
func (w *WhisperCpp) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	var empty Transcript

	outputDir, err := os.MkdirTemp("", "podscribe-whispercpp-*")
	if err != nil {
		return empty, services.Wrap(services.ErrBackendUnavailable, "whispercpp", "scratch dir", "", err)
	}
	defer os.RemoveAll(outputDir)

	if w.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(w.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	outPrefix := filepath.Join(outputDir, "transcript")
	args := []string{
		"-m", w.cfg.ModelPath,
		"-f", audioPath,
		"-otxt",
		"-of", outPrefix,
	}
	if language != "" {
		args = append(args, "-l", language)
	}

	if err := w.run(ctx, w.cfg.Binary, args...); err != nil {
		if ctx.Err() != nil {
			return empty, services.Wrap(services.ErrBackendTransient, "whispercpp", "transcribe", "run timed out", ctx.Err())
		}
		return empty, services.Wrap(services.ErrBackendUnavailable, "whispercpp", "transcribe", "", err)
	}

	data, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		return empty, services.Wrap(services.ErrBackendUnavailable, "whispercpp", "load output", outPrefix+".txt", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return empty, services.Wrap(services.ErrBackendUnavailable, "whispercpp", "load output", "empty transcript", nil)
	}
	return Transcript{Text: text, Language: language}, nil
}

func (w *WhisperCpp) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
