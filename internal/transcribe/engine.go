package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
)

// Transcript is the raw output of a single backend invocation.
type Transcript struct {
	Text     string
	Language string
	Duration time.Duration
}

// Result is what the engine hands back to the pipeline.
type Result struct {
	Text        string
	BackendUsed string
	Language    string
	Duration    time.Duration
	// Placeholder marks a degraded result produced when no real backend
	// could run. The episode still completes; the note says so.
	Placeholder bool
}

// Backend is a single speech-to-text implementation.
type Backend interface {
	// Name identifies the backend in logs and in the ledger.
	Name() string
	// Available reports whether the backend can run at all (credentials
	// present, binary on PATH). A non-nil error skips the backend without
	// burning retries.
	Available(ctx context.Context) error
	// Transcribe converts the audio file. Errors tagged
	// services.ErrBackendTransient are retried against the same backend;
	// services.ErrBackendUnavailable falls through to the next one.
	Transcribe(ctx context.Context, audioPath, language string) (Transcript, error)
}

// Engine walks the backend fallback chain.
type Engine struct {
	backends []Backend
	retries  int
	logger   *slog.Logger
	sleeper  func(time.Duration)
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) EngineOption {
	return func(e *Engine) {
		e.sleeper = sleeper
	}
}

// NewEngine builds an engine over the given backends. transientRetries is the
// number of extra same-backend attempts after a transient failure.
func NewEngine(backends []Backend, transientRetries int, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if transientRetries < 0 {
		transientRetries = 0
	}
	e := &Engine{
		backends: backends,
		retries:  transientRetries,
		logger:   logging.NewComponentLogger(logger, "transcribe"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BackendsFromConfig instantiates the configured fallback chain. The
// placeholder backend is always appended last so the chain can never be
// empty-handed.
func BackendsFromConfig(cfg *config.Config) []Backend {
	backends := make([]Backend, 0, len(cfg.Transcription.BackendOrder)+1)
	sawNull := false
	for _, name := range cfg.Transcription.BackendOrder {
		switch name {
		case "openai":
			backends = append(backends, NewOpenAI(cfg.Transcription.OpenAI))
		case "local":
			backends = append(backends, NewLocalModel(cfg.Transcription.Local))
		case "whispercpp":
			backends = append(backends, NewWhisperCpp(cfg.Transcription.WhisperCpp))
		case "none":
			backends = append(backends, NewNull())
			sawNull = true
		}
	}
	if !sawNull {
		backends = append(backends, NewNull())
	}
	return backends
}

// Transcribe runs the fallback chain. It returns an error only when the
// context is cancelled or the chain has no placeholder terminator.
func (e *Engine) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	var lastErr error

	for _, backend := range e.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := backend.Available(ctx); err != nil {
			e.logger.Info("backend unavailable, falling through",
				logging.String(logging.FieldBackend, backend.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "backend_skipped"),
			)
			lastErr = err
			continue
		}

		transcript, err := e.runBackend(ctx, backend, audioPath, language)
		if err == nil {
			return &Result{
				Text:        transcript.Text,
				BackendUsed: backend.Name(),
				Language:    transcript.Language,
				Duration:    transcript.Duration,
				Placeholder: backend.Name() == nullBackendName,
			}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		e.logger.Warn("backend failed, falling through",
			logging.String(logging.FieldBackend, backend.Name()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "backend_failed"),
		)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no transcription backends configured")
	}
	return nil, services.Wrap(services.ErrBackendUnavailable, "transcribe", "fallback",
		"every backend failed", lastErr)
}

// runBackend invokes one backend with bounded retries for transient errors.
func (e *Engine) runBackend(ctx context.Context, backend Backend, audioPath, language string) (Transcript, error) {
	attempts := e.retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		transcript, err := backend.Transcribe(ctx, audioPath, language)
		if err == nil {
			return transcript, nil
		}
		lastErr = err
		if errors.Is(err, services.ErrBackendUnavailable) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return Transcript{}, err
		}
		if attempt == attempts {
			break
		}
		delay := time.Duration(attempt) * time.Second
		e.logger.Warn("transient backend failure, retrying",
			logging.String(logging.FieldBackend, backend.Name()),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "backend_retry"),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return Transcript{}, err
		}
	}

	return Transcript{}, fmt.Errorf("%s: failed after %d attempts: %w", backend.Name(), attempts, lastErr)
}

func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
