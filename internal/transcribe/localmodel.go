package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/services"
)

// LocalModel runs a speech model on this machine through uvx, writing JSON
// segments to a scratch directory and concatenating their text.
type LocalModel struct {
	cfg           config.LocalBackend
	lookPath      func(string) (string, error)
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewLocalModel constructs the subprocess backend.
func NewLocalModel(cfg config.LocalBackend) *LocalModel {
	return &LocalModel{cfg: cfg, lookPath: exec.LookPath}
}

// WithCommandRunner sets a custom command runner (for testing).
func (l *LocalModel) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	l.commandRunner = runner
}

// Name implements Backend.
func (l *LocalModel) Name() string { return "local" }

// Available implements Backend.
func (l *LocalModel) Available(ctx context.Context) error {
	if l.commandRunner != nil {
		return nil
	}
	if _, err := l.lookPath(l.cfg.Binary); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, "local", "available",
			fmt.Sprintf("%s not on PATH", l.cfg.Binary), err)
	}
	return nil
}

// Transcribe implements Backend.
func (l *LocalModel) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	var empty Transcript

	outputDir, err := os.MkdirTemp("", "podscribe-local-*")
	if err != nil {
		return empty, services.Wrap(services.ErrBackendUnavailable, "local", "scratch dir", "", err)
	}
	defer os.RemoveAll(outputDir)

	if deadline := l.timeout(); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	args := l.buildArgs(audioPath, outputDir, language)
	if err := l.run(ctx, l.cfg.Binary, args...); err != nil {
		if ctx.Err() != nil {
			return empty, services.Wrap(services.ErrBackendTransient, "local", "transcribe", "model run timed out", ctx.Err())
		}
		return empty, services.Wrap(services.ErrBackendUnavailable, "local", "transcribe", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	transcript, err := loadSegmentTranscript(jsonPath)
	if err != nil {
		return empty, services.Wrap(services.ErrBackendUnavailable, "local", "load output", jsonPath, err)
	}
	return transcript, nil
}

func (l *LocalModel) timeout() time.Duration {
	if l.cfg.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(l.cfg.TimeoutSeconds) * time.Second
}

func (l *LocalModel) buildArgs(audioPath, outputDir, language string) []string {
	args := []string{
		"whisperx",
		audioPath,
		"--model", l.cfg.Model,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--device", "cpu",
		"--compute_type", "int8",
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	return args
}

func (l *LocalModel) run(ctx context.Context, name string, args ...string) error {
	if l.commandRunner != nil {
		return l.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type modelSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type modelPayload struct {
	Segments []modelSegment `json:"segments"`
	Language string         `json:"language"`
}

func loadSegmentTranscript(jsonPath string) (Transcript, error) {
	var empty Transcript
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return empty, err
	}
	var payload modelPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return empty, fmt.Errorf("parse segments json: %w", err)
	}

	var (
		parts []string
		end   float64
	)
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		if seg.End > end {
			end = seg.End
		}
	}
	if len(parts) == 0 {
		return empty, fmt.Errorf("no segments in %s", jsonPath)
	}
	return Transcript{
		Text:     strings.Join(parts, " "),
		Language: payload.Language,
		Duration: time.Duration(end * float64(time.Second)),
	}, nil
}
