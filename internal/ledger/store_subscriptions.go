package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddSubscription registers a podcast feed, updating the URL when the name is
// already known.
func (s *Store) AddSubscription(ctx context.Context, name, rssURL string) (*Subscription, error) {
	now := timestamp(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO subscriptions (name, rss_url, enabled, created_at, updated_at)
         VALUES (?, ?, 1, ?, ?)
         ON CONFLICT(name) DO UPDATE SET rss_url = excluded.rss_url, updated_at = excluded.updated_at`,
		name, rssURL, now, now,
	); err != nil {
		return nil, fmt.Errorf("add subscription: %w", err)
	}
	return s.GetSubscription(ctx, name)
}

// GetSubscription returns the subscription with the given name, or nil.
func (s *Store) GetSubscription(ctx context.Context, name string) (*Subscription, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, rss_url, enabled, last_checked, created_at, updated_at
         FROM subscriptions WHERE name = ?`,
		name,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// ListSubscriptions returns all subscriptions ordered by name. When
// enabledOnly is set, disabled feeds are skipped.
func (s *Store) ListSubscriptions(ctx context.Context, enabledOnly bool) ([]*Subscription, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, name, rss_url, enabled, last_checked, created_at, updated_at
        FROM subscriptions`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// TouchSubscription records a successful feed refresh.
func (s *Store) TouchSubscription(ctx context.Context, id int64, checkedAt time.Time) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE subscriptions SET last_checked = ?, updated_at = ? WHERE id = ?`,
		timestamp(checkedAt), timestamp(time.Now()), id,
	); err != nil {
		return fmt.Errorf("touch subscription %d: %w", id, err)
	}
	return nil
}

// SetSubscriptionEnabled toggles a feed without deleting its history.
func (s *Store) SetSubscriptionEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE subscriptions SET enabled = ?, updated_at = ? WHERE name = ?`,
		boolToInt(enabled), timestamp(time.Now()), name,
	)
	if err != nil {
		return fmt.Errorf("toggle subscription %q: %w", name, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("toggle subscription %q: not found", name)
	}
	return nil
}

func scanSubscription(scanner rowScanner) (*Subscription, error) {
	var (
		sub                  Subscription
		enabled              int
		lastChecked          sql.NullString
		createdAt, updatedAt string
	)
	err := scanner.Scan(&sub.ID, &sub.Name, &sub.RSSURL, &enabled, &lastChecked, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Enabled = enabled != 0
	if lastChecked.Valid && lastChecked.String != "" {
		t := parseTimestamp(lastChecked.String)
		sub.LastChecked = &t
	}
	sub.CreatedAt = parseTimestamp(createdAt)
	sub.UpdatedAt = parseTimestamp(updatedAt)
	return &sub, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
