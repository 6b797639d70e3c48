package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"podscribe/internal/services"
)

const episodeColumns = `id, podcast_name, episode_title, episode_url, status,
    audio_path, output_path, backend_used, transcript_chars, summary_chars,
    error_message, created_at, updated_at`

// CreateOrGet inserts a new pending episode or returns the existing record
// for the same URL. The second return value reports whether a record was
// created. Concurrent callers racing on the same URL all observe the single
// surviving row.
func (s *Store) CreateOrGet(ctx context.Context, podcastName, episodeTitle, episodeURL string) (*Episode, bool, error) {
	ctx = ensureContext(ctx)
	now := timestamp(time.Now())

	var created bool
	err := retryOnBusy(ctx, func() error {
		created = false
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO episodes (podcast_name, episode_title, episode_url, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(episode_url) DO NOTHING`,
			podcastName,
			episodeTitle,
			episodeURL,
			StatusPending,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 1 {
			created = true
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, false, err
	}

	episode, err := s.FindByURL(ctx, episodeURL)
	if err != nil {
		return nil, false, err
	}
	if episode == nil {
		return nil, false, fmt.Errorf("episode %q missing after upsert", episodeURL)
	}
	return episode, created, nil
}

// FindByURL returns the episode keyed by URL, or nil when absent.
func (s *Store) FindByURL(ctx context.Context, episodeURL string) (*Episode, error) {
	return s.queryOne(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE episode_url = ?`, episodeURL)
}

// GetByID returns the episode with the given ID, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Episode, error) {
	return s.queryOne(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
}

// Advance moves an episode from its current status to the next one, writing
// all mutable fields in the same statement. The update is guarded by the
// status the caller last observed; a lost guard means another writer moved
// the record and the call fails with a ledger conflict.
func (s *Store) Advance(ctx context.Context, episode *Episode, to Status) error {
	if episode == nil {
		return errors.New("advance: nil episode")
	}
	if !episode.Status.CanAdvanceTo(to) {
		return services.Wrap(services.ErrLedgerConflict, "ledger", "advance",
			fmt.Sprintf("illegal transition %s -> %s for episode %d", episode.Status, to, episode.ID), nil)
	}

	now := time.Now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE episodes
         SET status = ?, audio_path = ?, output_path = ?, backend_used = ?,
             transcript_chars = ?, summary_chars = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		to,
		nullableString(episode.AudioPath),
		nullableString(episode.OutputPath),
		nullableString(episode.BackendUsed),
		episode.TranscriptChars,
		episode.SummaryChars,
		nullableString(episode.ErrorMessage),
		timestamp(now),
		episode.ID,
		episode.Status,
	)
	if err != nil {
		return fmt.Errorf("advance episode %d: %w", episode.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance episode %d: rows affected: %w", episode.ID, err)
	}
	if rows == 0 {
		current, lookupErr := s.GetByID(ctx, episode.ID)
		detail := "record changed underneath this writer"
		if lookupErr == nil && current != nil {
			detail = fmt.Sprintf("expected status %s, found %s", episode.Status, current.Status)
		}
		return services.Wrap(services.ErrLedgerConflict, "ledger", "advance", detail, nil)
	}

	episode.Status = to
	episode.UpdatedAt = now.UTC()
	return nil
}

// MarkFailed transitions an episode to failed with a diagnostic message. It
// uses the same guarded write as Advance.
func (s *Store) MarkFailed(ctx context.Context, episode *Episode, message string) error {
	if episode == nil {
		return errors.New("mark failed: nil episode")
	}
	episode.ErrorMessage = message
	return s.Advance(ctx, episode, StatusFailed)
}

// Reopen resets an episode to pending and clears the fields produced by the
// previous run. Reprocessing restarts from acquisition.
func (s *Store) Reopen(ctx context.Context, id int64) (*Episode, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE episodes
         SET status = ?, audio_path = NULL, output_path = NULL, backend_used = NULL,
             transcript_chars = 0, summary_chars = 0, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		StatusPending,
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("reopen episode %d: %w", id, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, fmt.Errorf("reopen episode %d: not found", id)
	}
	return s.GetByID(ctx, id)
}

// NextPending returns the oldest pending episode, or nil when the queue is
// drained.
func (s *Store) NextPending(ctx context.Context) (*Episode, error) {
	return s.queryOne(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		StatusPending,
	)
}

// History lists episodes newest-first, optionally filtered by status. A
// limit of zero or less means no limit.
func (s *Store) History(ctx context.Context, limit int, statuses ...Status) ([]*Episode, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY updated_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

// RetryFailed moves failed episodes back to pending. With no URLs every
// failed record is retried; otherwise only the named ones. Returns the number
// of records reset.
func (s *Store) RetryFailed(ctx context.Context, urls ...string) (int64, error) {
	now := timestamp(time.Now())
	if len(urls) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE episodes
             SET status = ?, audio_path = NULL, output_path = NULL, backend_used = NULL,
                 transcript_chars = 0, summary_chars = 0, error_message = NULL, updated_at = ?
             WHERE status = ?`,
			StatusPending, now, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed episodes: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(urls)+3)
	args = append(args, StatusPending, now, StatusFailed)
	for _, url := range urls {
		args = append(args, url)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE episodes
         SET status = ?, audio_path = NULL, output_path = NULL, backend_used = NULL,
             transcript_chars = 0, summary_chars = 0, error_message = NULL, updated_at = ?
         WHERE status = ? AND episode_url IN (`+makePlaceholders(len(urls))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected episodes: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns episode counts per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// ActiveAudioPaths returns the audio files belonging to episodes that are
// still in flight. The temp-file janitor spares these.
func (s *Store) ActiveAudioPaths(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT audio_path FROM episodes
         WHERE audio_path IS NOT NULL AND status NOT IN (?, ?)`,
		StatusCompleted, StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("list active audio paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path sql.NullString
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan audio path: %w", err)
		}
		if path.Valid && path.String != "" {
			paths = append(paths, path.String)
		}
	}
	return paths, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*Episode, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, query, args...)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return episode, nil
}

func scanEpisode(scanner rowScanner) (*Episode, error) {
	var (
		episode                            Episode
		audioPath, outputPath, backendUsed sql.NullString
		errorMessage                       sql.NullString
		createdAt, updatedAt               string
	)
	err := scanner.Scan(
		&episode.ID,
		&episode.PodcastName,
		&episode.EpisodeTitle,
		&episode.EpisodeURL,
		&episode.Status,
		&audioPath,
		&outputPath,
		&backendUsed,
		&episode.TranscriptChars,
		&episode.SummaryChars,
		&errorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	episode.AudioPath = audioPath.String
	episode.OutputPath = outputPath.String
	episode.BackendUsed = backendUsed.String
	episode.ErrorMessage = errorMessage.String
	episode.CreatedAt = parseTimestamp(createdAt)
	episode.UpdatedAt = parseTimestamp(updatedAt)
	return &episode, nil
}
