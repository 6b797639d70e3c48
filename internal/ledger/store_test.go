package ledger_test

import (
	"context"
	"errors"
	"testing"

	"podscribe/internal/ledger"
	"podscribe/internal/services"
	"podscribe/internal/testsupport"
)

func TestCreateOrGetDeduplicatesByURL(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, created, err := store.CreateOrGet(ctx, "Go Time", "Episode 1", "https://example.com/ep1.mp3")
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	if !created {
		t.Fatal("expected first call to create the record")
	}
	if first.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", first.Status)
	}

	second, created, err := store.CreateOrGet(ctx, "Go Time", "Episode 1 (dup)", "https://example.com/ep1.mp3")
	if err != nil {
		t.Fatalf("CreateOrGet second: %v", err)
	}
	if created {
		t.Fatal("expected second call to find the existing record")
	}
	if second.ID != first.ID {
		t.Fatalf("IDs differ: %d vs %d", second.ID, first.ID)
	}
	if second.EpisodeTitle != "Episode 1" {
		t.Fatalf("title overwritten: %q", second.EpisodeTitle)
	}
}

func TestAdvanceWalksForwardAndRejectsSkips(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	episode := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")

	walk := []ledger.Status{
		ledger.StatusDownloading,
		ledger.StatusDownloaded,
		ledger.StatusTranscribing,
		ledger.StatusTranscribed,
		ledger.StatusSummarizing,
		ledger.StatusCompleted,
	}
	for _, next := range walk {
		if err := store.Advance(ctx, episode, next); err != nil {
			t.Fatalf("Advance to %s: %v", next, err)
		}
		if episode.Status != next {
			t.Fatalf("in-memory status = %s, want %s", episode.Status, next)
		}
	}

	fresh := testsupport.NewEpisode(t, store, "Go Time", "Episode 2", "https://example.com/ep2.mp3")
	err := store.Advance(ctx, fresh, ledger.StatusTranscribing)
	if !errors.Is(err, services.ErrLedgerConflict) {
		t.Fatalf("expected conflict for skipped stage, got %v", err)
	}
}

func TestAdvanceGuardsAgainstLostUpdate(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	episode := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")

	// Another writer moves the record while this copy still thinks it is
	// pending.
	other, err := store.GetByID(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := store.Advance(ctx, other, ledger.StatusDownloading); err != nil {
		t.Fatalf("Advance other: %v", err)
	}

	err = store.Advance(ctx, episode, ledger.StatusDownloading)
	if !errors.Is(err, services.ErrLedgerConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMarkFailedFromAnyNonTerminal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	episode := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")

	if err := store.Advance(ctx, episode, ledger.StatusDownloading); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := store.MarkFailed(ctx, episode, "download: connection reset"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, err := store.GetByID(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected error message to be recorded")
	}

	// Terminal records stay terminal.
	if err := store.MarkFailed(ctx, got, "again"); !errors.Is(err, services.ErrLedgerConflict) {
		t.Fatalf("expected conflict failing a failed record, got %v", err)
	}
}

func TestReopenResetsDerivedFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	episode := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")

	episode.AudioPath = "/tmp/ep1.mp3"
	if err := store.Advance(ctx, episode, ledger.StatusDownloading); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := store.MarkFailed(ctx, episode, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	reopened, err := store.Reopen(ctx, episode.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if reopened.Status != ledger.StatusPending {
		t.Fatalf("status = %s", reopened.Status)
	}
	if reopened.AudioPath != "" || reopened.ErrorMessage != "" || reopened.BackendUsed != "" {
		t.Fatalf("derived fields not cleared: %+v", reopened)
	}
}

func TestRetryFailedSelectsByURL(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")
	second := testsupport.NewEpisode(t, store, "Go Time", "Episode 2", "https://example.com/ep2.mp3")
	for _, ep := range []*ledger.Episode{first, second} {
		if err := store.Advance(ctx, ep, ledger.StatusDownloading); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if err := store.MarkFailed(ctx, ep, "boom"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}

	reset, err := store.RetryFailed(ctx, first.EpisodeURL)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}

	got, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusFailed {
		t.Fatalf("untargeted episode moved to %s", got.Status)
	}

	reset, err = store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset all = %d, want 1", reset)
	}
}

func TestNextPendingReturnsOldest(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")
	testsupport.NewEpisode(t, store, "Go Time", "Episode 2", "https://example.com/ep2.mp3")

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("NextPending = %+v, want episode %d", next, first.ID)
	}

	if err := store.Advance(ctx, next, ledger.StatusDownloading); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	next, err = store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.EpisodeURL != "https://example.com/ep2.mp3" {
		t.Fatalf("NextPending = %+v", next)
	}
}

func TestHistoryFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	done := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")
	testsupport.NewEpisode(t, store, "Go Time", "Episode 2", "https://example.com/ep2.mp3")
	for _, next := range []ledger.Status{
		ledger.StatusDownloading, ledger.StatusDownloaded,
		ledger.StatusTranscribing, ledger.StatusTranscribed,
		ledger.StatusSummarizing, ledger.StatusCompleted,
	} {
		if err := store.Advance(ctx, done, next); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	completed, err := store.History(ctx, 10, ledger.StatusCompleted)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Fatalf("History(completed) = %+v", completed)
	}

	all, err := store.History(ctx, 0)
	if err != nil {
		t.Fatalf("History all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("History all = %d records", len(all))
	}
}

func TestActiveAudioPathsSkipsTerminal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	active := testsupport.NewEpisode(t, store, "Go Time", "Episode 1", "https://example.com/ep1.mp3")
	active.AudioPath = "/tmp/active.mp3"
	if err := store.Advance(ctx, active, ledger.StatusDownloading); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	dead := testsupport.NewEpisode(t, store, "Go Time", "Episode 2", "https://example.com/ep2.mp3")
	dead.AudioPath = "/tmp/dead.mp3"
	if err := store.Advance(ctx, dead, ledger.StatusDownloading); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := store.MarkFailed(ctx, dead, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	paths, err := store.ActiveAudioPaths(ctx)
	if err != nil {
		t.Fatalf("ActiveAudioPaths: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/tmp/active.mp3" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestSubscriptionsUpsertAndToggle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	sub, err := store.AddSubscription(ctx, "Go Time", "https://changelog.com/gotime/feed")
	if err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if !sub.Enabled {
		t.Fatal("new subscription should be enabled")
	}

	updated, err := store.AddSubscription(ctx, "Go Time", "https://changelog.com/gotime/feed.xml")
	if err != nil {
		t.Fatalf("AddSubscription update: %v", err)
	}
	if updated.ID != sub.ID {
		t.Fatalf("upsert created a new row: %d vs %d", updated.ID, sub.ID)
	}
	if updated.RSSURL != "https://changelog.com/gotime/feed.xml" {
		t.Fatalf("rss_url = %q", updated.RSSURL)
	}

	if err := store.SetSubscriptionEnabled(ctx, "Go Time", false); err != nil {
		t.Fatalf("SetSubscriptionEnabled: %v", err)
	}
	enabled, err := store.ListSubscriptions(ctx, true)
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("enabled = %+v", enabled)
	}
}
