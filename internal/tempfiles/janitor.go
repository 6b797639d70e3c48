package tempfiles

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/logging"
)

// SweepResult contains the outcome of a temp directory sweep.
type SweepResult struct {
	Removed []string
	Planned []string
	Errors  []SweepError
}

// SweepError pairs a path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Janitor removes aged files from the temp directory.
type Janitor struct {
	dir    string
	active *ActiveSet
	logger *slog.Logger
}

// NewJanitor builds a janitor over dir. The active set may be shared with the
// downloader so in-flight files survive sweeps.
func NewJanitor(dir string, active *ActiveSet, logger *slog.Logger) *Janitor {
	if active == nil {
		active = NewActiveSet()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Janitor{dir: dir, active: active, logger: logging.NewComponentLogger(logger, "janitor")}
}

// Active exposes the janitor's active set for registration by the downloader.
func (j *Janitor) Active() *ActiveSet {
	return j.active
}

// Sweep removes files under the temp directory whose mod time is older than
// maxAge. Registered active files are always spared, even at maxAge zero.
// With dryRun set nothing is removed; doomed paths are reported in Planned.
func (j *Janitor) Sweep(ctx context.Context, maxAge time.Duration, dryRun bool) SweepResult {
	result := SweepResult{}

	dir := strings.TrimSpace(j.dir)
	if dir == "" {
		return result
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: dir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if j.active.Contains(path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if dryRun {
			result.Planned = append(result.Planned, path)
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			j.logger.Warn("failed to remove stale temp file",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "temp_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		j.logger.Info("removed stale temp file",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "temp_cleanup"),
		)
	}

	return result
}
