package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"podscribe/internal/services"
	"podscribe/internal/testsupport"
)

type fakeBackend struct {
	name         string
	availableErr error
	results      []error
	calls        int
	text         string
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Available(ctx context.Context) error { return f.availableErr }

func (f *fakeBackend) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	f.calls++
	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		if err != nil {
			return Transcript{}, err
		}
	}
	text := f.text
	if text == "" {
		text = "transcript from " + f.name
	}
	return Transcript{Text: text, Language: language}, nil
}

func newEngine(retries int, backends ...Backend) *Engine {
	return NewEngine(backends, retries, nil, WithSleeper(func(time.Duration) {}))
}

func TestEngineSkipsUnavailableBackend(t *testing.T) {
	broken := &fakeBackend{
		name:         "openai",
		availableErr: services.Wrap(services.ErrBackendUnavailable, "openai", "available", "no key", nil),
	}
	working := &fakeBackend{name: "local"}

	result, err := newEngine(0, broken, working).Transcribe(context.Background(), "/tmp/a.mp3", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.BackendUsed != "local" {
		t.Fatalf("backend used = %q", result.BackendUsed)
	}
	if broken.calls != 0 {
		t.Fatal("unavailable backend should never be invoked")
	}
	if result.Placeholder {
		t.Fatal("real backend result marked as placeholder")
	}
}

func TestEngineRetriesTransientOnSameBackend(t *testing.T) {
	flaky := &fakeBackend{
		name: "openai",
		results: []error{
			services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "blip", nil),
			services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "blip", nil),
			nil,
		},
	}

	result, err := newEngine(2, flaky).Transcribe(context.Background(), "/tmp/a.mp3", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("calls = %d, want 3", flaky.calls)
	}
	if result.BackendUsed != "openai" {
		t.Fatalf("backend used = %q", result.BackendUsed)
	}
}

func TestEngineFallsThroughAfterRetriesExhausted(t *testing.T) {
	flaky := &fakeBackend{
		name: "openai",
		results: []error{
			services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "blip", nil),
			services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "blip", nil),
		},
	}
	fallback := &fakeBackend{name: "local"}

	result, err := newEngine(1, flaky, fallback).Transcribe(context.Background(), "/tmp/a.mp3", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if flaky.calls != 2 {
		t.Fatalf("flaky calls = %d, want retries+1", flaky.calls)
	}
	if result.BackendUsed != "local" {
		t.Fatalf("backend used = %q", result.BackendUsed)
	}
}

func TestEngineUnavailableDuringRunFallsThroughImmediately(t *testing.T) {
	dying := &fakeBackend{
		name: "whispercpp",
		results: []error{
			services.Wrap(services.ErrBackendUnavailable, "whispercpp", "transcribe", "model gone", nil),
		},
	}
	fallback := &fakeBackend{name: "local"}

	result, err := newEngine(3, dying, fallback).Transcribe(context.Background(), "/tmp/a.mp3", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if dying.calls != 1 {
		t.Fatalf("dying calls = %d, unavailable must not burn retries", dying.calls)
	}
	if result.BackendUsed != "local" {
		t.Fatalf("backend used = %q", result.BackendUsed)
	}
}

func TestEnginePlaceholderWhenEverythingIsDown(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackendOrder("openai", "local", "whispercpp"))
	// No key, no binary on PATH, no model file: every real backend reports
	// unavailable and the chain lands on the placeholder.
	cfg.Transcription.Local.Binary = "definitely-not-a-binary-podscribe"
	cfg.Transcription.WhisperCpp.ModelPath = ""
	backends := BackendsFromConfig(cfg)

	result, err := newEngine(0, backends...).Transcribe(context.Background(), "/tmp/episode.mp3", "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !result.Placeholder {
		t.Fatal("expected placeholder result")
	}
	if result.BackendUsed != "none" {
		t.Fatalf("backend used = %q", result.BackendUsed)
	}
	if result.Text == "" {
		t.Fatal("placeholder text empty")
	}
}

func TestEngineStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &fakeBackend{name: "local"}
	_, err := newEngine(0, backend).Transcribe(ctx, "/tmp/a.mp3", "en")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if backend.calls != 0 {
		t.Fatal("backend invoked after cancellation")
	}
}

func TestBackendsFromConfigAlwaysTerminatesWithNull(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBackendOrder("openai"))
	backends := BackendsFromConfig(cfg)
	if len(backends) != 2 {
		t.Fatalf("backends = %d, want openai + null", len(backends))
	}
	if backends[len(backends)-1].Name() != "none" {
		t.Fatalf("last backend = %q", backends[len(backends)-1].Name())
	}
}
