package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Go Time</title>
    <item>
      <title>Episode 3</title>
      <pubDate>Mon, 17 Aug 2026 10:00:00 +0000</pubDate>
      <enclosure url="https://cdn.example.com/ep3.mp3" type="audio/mpeg" length="1000"/>
    </item>
    <item>
      <title>Episode 2 (video)</title>
      <pubDate>Mon, 10 Aug 2026 10:00:00 +0000</pubDate>
      <enclosure url="https://cdn.example.com/ep2.mp4" type="video/mp4" length="1000"/>
    </item>
    <item>
      <title>Episode 1</title>
      <pubDate>Mon, 03 Aug 2026 10:00:00 +0000</pubDate>
      <enclosure url="https://cdn.example.com/ep1.m4a?x=1" length="1000"/>
    </item>
  </channel>
</rss>`

func serveFeed(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestEpisodesSkipsNonAudioAndKeepsUntypedAudio(t *testing.T) {
	source := NewSource(nil)
	items, err := source.Episodes(context.Background(), "", serveFeed(t), 0)
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].AudioURL != "https://cdn.example.com/ep3.mp3" {
		t.Fatalf("first url = %q", items[0].AudioURL)
	}
	if items[1].AudioURL != "https://cdn.example.com/ep1.m4a?x=1" {
		t.Fatalf("second url = %q", items[1].AudioURL)
	}
	if items[0].PodcastName != "Go Time" {
		t.Fatalf("podcast name = %q", items[0].PodcastName)
	}
	if items[0].Published.IsZero() {
		t.Fatal("published time not parsed")
	}
}

func TestEpisodesHonorsLimitAndNameOverride(t *testing.T) {
	source := NewSource(nil)
	items, err := source.Episodes(context.Background(), "My Name", serveFeed(t), 1)
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].PodcastName != "My Name" {
		t.Fatalf("podcast name = %q", items[0].PodcastName)
	}
}

func TestEpisodesPropagatesFetchErrors(t *testing.T) {
	source := NewSource(nil)
	if _, err := source.Episodes(context.Background(), "", "http://127.0.0.1:1/feed", 0); err == nil {
		t.Fatal("expected fetch error")
	}
}
