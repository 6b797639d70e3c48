// Package workflow runs the background processing loop: pull the oldest
// pending episode from the ledger, walk it through the pipeline, and
// periodically sweep the temp directory.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
	"podscribe/internal/logging"
	"podscribe/internal/pipeline"
	"podscribe/internal/tempfiles"
)

// Manager owns the polling goroutine.
type Manager struct {
	cfg     *config.Config
	store   *ledger.Store
	pipe    *pipeline.Pipeline
	janitor *tempfiles.Janitor
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	lastErr error

	pollInterval  time.Duration
	sweepInterval time.Duration
}

// NewManager wires the loop together. janitor may be nil to skip sweeping.
func NewManager(cfg *config.Config, store *ledger.Store, pipe *pipeline.Pipeline, janitor *tempfiles.Janitor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		pipe:          pipe,
		janitor:       janitor,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Workflow.PollInterval) * time.Second,
		sweepInterval: time.Duration(cfg.Workflow.SweepInterval) * time.Minute,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	if m.janitor != nil && m.sweepInterval > 0 {
		m.wg.Add(1)
		go m.runSweeper(runCtx)
	}
	m.mu.Unlock()

	go m.runLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError returns the most recent loop error, for status reporting.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		episode, err := m.store.NextPending(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next pending episode",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check ledger database access"),
			)
			if !m.sleep(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second) {
				return
			}
			continue
		}
		if episode == nil {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
			continue
		}

		if _, err := m.pipe.Run(ctx, episode); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// The pipeline already recorded the failure; the loop keeps
			// draining the queue.
			m.setLastError(err)
		}
	}
}

func (m *Manager) runSweeper(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := m.janitor.Sweep(ctx, m.cfg.TempMaxAge(), false)
			if len(result.Removed) > 0 || len(result.Errors) > 0 {
				m.logger.Info("temp sweep finished",
					logging.Int("removed", len(result.Removed)),
					logging.Int("errors", len(result.Errors)),
					logging.String(logging.FieldEventType, "temp_sweep"),
				)
			}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
