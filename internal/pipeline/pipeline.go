// Package pipeline orchestrates the walk of one episode through the ledger:
// acquire audio, transcribe it, optionally summarize, and render a Markdown
// note. Each stage transition is recorded before the stage's side effects are
// visible to other readers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"podscribe/internal/config"
	"podscribe/internal/download"
	"podscribe/internal/ledger"
	"podscribe/internal/logging"
	"podscribe/internal/notes"
	"podscribe/internal/notifications"
	"podscribe/internal/services"
	"podscribe/internal/tempfiles"
	"podscribe/internal/transcribe"
)

// Downloader acquires episode audio.
type Downloader interface {
	Acquire(ctx context.Context, source string) (*download.Result, error)
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*transcribe.Result, error)
}

// Summarizer condenses a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, podcastName, episodeTitle, transcript string) (string, error)
}

// Renderer writes the finished note.
type Renderer interface {
	Render(note notes.Note) (string, error)
}

// Request names one episode to process.
type Request struct {
	PodcastName  string
	EpisodeTitle string
	// Source is a remote audio URL or a local file path. It is also the
	// dedup key in the ledger.
	Source string
	// Force reprocesses a completed episode from scratch.
	Force bool
}

// Outcome reports what happened to one request.
type Outcome struct {
	Episode          *ledger.Episode
	OutputPath       string
	BackendUsed      string
	AlreadyProcessed bool
	Degraded         bool
}

// Pipeline wires the stages together over a shared ledger.
type Pipeline struct {
	cfg         *config.Config
	store       *ledger.Store
	downloader  Downloader
	transcriber Transcriber
	summarizer  Summarizer
	renderer    Renderer
	notifier    notifications.Service
	active      *tempfiles.ActiveSet
	logger      *slog.Logger
}

// New assembles a pipeline. summarizer may be nil when summarization is
// disabled; notifier may be nil for a silent pipeline.
func New(
	cfg *config.Config,
	store *ledger.Store,
	downloader Downloader,
	transcriber Transcriber,
	summarizer Summarizer,
	renderer Renderer,
	notifier notifications.Service,
	active *tempfiles.ActiveSet,
	logger *slog.Logger,
) *Pipeline {
	if active == nil {
		active = tempfiles.NewActiveSet()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		downloader:  downloader,
		transcriber: transcriber,
		summarizer:  summarizer,
		renderer:    renderer,
		notifier:    notifier,
		active:      active,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process resolves a request against the ledger and runs the episode through
// every stage. A completed episode short-circuits without touching the
// network unless Force is set.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Outcome, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "pipeline", "process", "empty source", nil)
	}

	episode, created, err := p.store.CreateOrGet(ctx, req.PodcastName, req.EpisodeTitle, source)
	if err != nil {
		return nil, err
	}

	if !created {
		if episode.Status == ledger.StatusCompleted && !req.Force {
			return &Outcome{
				Episode:          episode,
				OutputPath:       episode.OutputPath,
				BackendUsed:      episode.BackendUsed,
				AlreadyProcessed: true,
			}, nil
		}
		if episode.Status != ledger.StatusPending {
			// Failed records, forced completions, and records stranded
			// mid-flight by a crash all restart from acquisition.
			episode, err = p.store.Reopen(ctx, episode.ID)
			if err != nil {
				return nil, err
			}
		}
	}

	return p.Run(ctx, episode)
}

// Run walks a pending episode through the stages. The episode's URL is the
// audio source.
func (p *Pipeline) Run(ctx context.Context, episode *ledger.Episode) (*Outcome, error) {
	logger := p.logger.With(
		logging.String(logging.FieldRequestID, uuid.NewString()),
		logging.String(logging.FieldPodcast, episode.PodcastName),
		logging.String(logging.FieldEpisode, episode.EpisodeTitle),
		logging.String(logging.FieldEpisodeURL, episode.EpisodeURL),
	)
	logger.Info("processing episode", logging.String(logging.FieldEventType, "episode_started"))

	audio, err := p.acquire(ctx, episode, logger)
	if err != nil {
		return nil, p.fail(ctx, episode, logger, err)
	}
	defer p.active.Release(audio.LocalPath)

	transcript, err := p.transcribeStage(ctx, episode, audio, logger)
	if err != nil {
		return nil, p.fail(ctx, episode, logger, err)
	}

	summaryText, summaryDegraded, err := p.summarizeStage(ctx, episode, transcript, logger)
	if err != nil {
		return nil, p.fail(ctx, episode, logger, err)
	}

	degraded := transcript.Placeholder || summaryDegraded
	notePath, err := p.renderer.Render(notes.Note{
		PodcastName:  episode.PodcastName,
		EpisodeTitle: episode.EpisodeTitle,
		EpisodeURL:   episode.EpisodeURL,
		BackendUsed:  transcript.BackendUsed,
		Language:     transcript.Language,
		Duration:     transcript.Duration,
		Transcript:   transcript.Text,
		Summary:      summaryText,
		Degraded:     degraded,
		ProcessedAt:  time.Now(),
	})
	if err != nil {
		return nil, p.fail(ctx, episode, logger,
			services.Wrap(services.ErrDownstreamFailure, "renderer", "write note", "", err))
	}

	episode.OutputPath = notePath
	episode.SummaryChars = int64(len(summaryText))
	if err := p.store.Advance(ctx, episode, ledger.StatusCompleted); err != nil {
		return nil, p.fail(ctx, episode, logger, err)
	}

	logger.Info("episode completed",
		logging.String("output_path", notePath),
		logging.String(logging.FieldBackend, transcript.BackendUsed),
		logging.Bool("degraded", degraded),
		logging.String(logging.FieldEventType, "episode_completed"),
	)
	if err := p.notifier.NotifyEpisodeCompleted(ctx, episode.PodcastName, episode.EpisodeTitle, notePath); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
	if transcript.Placeholder {
		if err := p.notifier.NotifyTranscriptionDegraded(ctx, episode.PodcastName, episode.EpisodeTitle); err != nil {
			logger.Warn("degraded notification failed", logging.Error(err))
		}
	}

	return &Outcome{
		Episode:     episode,
		OutputPath:  notePath,
		BackendUsed: transcript.BackendUsed,
		Degraded:    degraded,
	}, nil
}

func (p *Pipeline) acquire(ctx context.Context, episode *ledger.Episode, logger *slog.Logger) (*download.Result, error) {
	if err := p.store.Advance(ctx, episode, ledger.StatusDownloading); err != nil {
		return nil, err
	}
	logger.Info("acquiring audio", logging.String(logging.FieldStage, "download"))

	audio, err := p.downloader.Acquire(ctx, episode.EpisodeURL)
	if err != nil {
		return nil, err
	}

	episode.AudioPath = audio.LocalPath
	if err := p.store.Advance(ctx, episode, ledger.StatusDownloaded); err != nil {
		p.active.Release(audio.LocalPath)
		return nil, err
	}
	return audio, nil
}

func (p *Pipeline) transcribeStage(ctx context.Context, episode *ledger.Episode, audio *download.Result, logger *slog.Logger) (*transcribe.Result, error) {
	if err := p.store.Advance(ctx, episode, ledger.StatusTranscribing); err != nil {
		return nil, err
	}
	logger.Info("transcribing audio", logging.String(logging.FieldStage, "transcribe"))

	transcript, err := p.transcriber.Transcribe(ctx, audio.LocalPath, p.cfg.Transcription.Language)
	if err != nil {
		return nil, err
	}

	episode.BackendUsed = transcript.BackendUsed
	episode.TranscriptChars = int64(len(transcript.Text))
	if err := p.store.Advance(ctx, episode, ledger.StatusTranscribed); err != nil {
		return nil, err
	}
	if transcript.Placeholder {
		logger.Warn("transcription degraded to placeholder",
			logging.String(logging.FieldBackend, transcript.BackendUsed),
			logging.String(logging.FieldImpact, "note will carry a placeholder transcript"),
		)
	}
	return transcript, nil
}

// summarizeStage returns the summary text and whether an optional summary was
// skipped because of a failure. Placeholder transcripts are never summarized.
func (p *Pipeline) summarizeStage(ctx context.Context, episode *ledger.Episode, transcript *transcribe.Result, logger *slog.Logger) (string, bool, error) {
	if p.summarizer == nil || !p.cfg.Summary.Enabled || transcript.Placeholder {
		return "", false, nil
	}

	if err := p.store.Advance(ctx, episode, ledger.StatusSummarizing); err != nil {
		return "", false, err
	}
	logger.Info("summarizing transcript", logging.String(logging.FieldStage, "summarize"))

	summaryText, err := p.summarizer.Summarize(ctx, episode.PodcastName, episode.EpisodeTitle, transcript.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		if p.cfg.Summary.Optional {
			logger.Warn("summary failed, continuing without it",
				logging.Error(err),
				logging.String(logging.FieldImpact, "note will have no summary section"),
			)
			return "", true, nil
		}
		return "", false, err
	}
	return summaryText, false, nil
}

// fail records a failed episode and notifies the operator. The original error
// is returned so callers can classify it. Cancellation is not a failure: the
// record goes back to pending instead so no step flag survives that nothing
// is actually running.
func (p *Pipeline) fail(ctx context.Context, episode *ledger.Episode, logger *slog.Logger, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		p.requeue(episode, logger)
		return cause
	}
	step := services.FailureStep(cause)
	message := fmt.Sprintf("%s: %s", step, cause.Error())
	logger.Error("episode failed",
		logging.String("step", step),
		logging.Error(cause),
		logging.String(logging.FieldEventType, "episode_failed"),
	)

	if episode.AudioPath != "" {
		p.active.Release(episode.AudioPath)
	}
	if err := p.store.MarkFailed(ctx, episode, message); err != nil {
		logger.Error("recording failure lost a ledger race", logging.Error(err))
	}
	if err := p.notifier.NotifyEpisodeFailed(ctx, episode.PodcastName, episode.EpisodeTitle, cause); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
	return cause
}

// requeue returns an interrupted episode to pending. The caller's context is
// already done, so the write runs on a short-lived fresh one.
func (p *Pipeline) requeue(episode *ledger.Episode, logger *slog.Logger) {
	if episode.AudioPath != "" {
		p.active.Release(episode.AudioPath)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := p.store.Reopen(ctx, episode.ID); err != nil {
		logger.Warn("failed to requeue interrupted episode", logging.Error(err))
		return
	}
	logger.Info("episode interrupted, returned to pending",
		logging.String(logging.FieldEventType, "episode_requeued"),
	)
}
