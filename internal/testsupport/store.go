package testsupport

import (
	"context"
	"testing"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEpisode creates a pending episode for tests using the provided store.
func NewEpisode(t testing.TB, store *ledger.Store, podcast, title, url string) *ledger.Episode {
	t.Helper()

	episode, created, err := store.CreateOrGet(context.Background(), podcast, title, url)
	if err != nil {
		t.Fatalf("store.CreateOrGet: %v", err)
	}
	if !created {
		t.Fatalf("expected a fresh episode for %q", url)
	}
	return episode
}
