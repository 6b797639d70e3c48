// Package feed reads podcast RSS feeds and extracts enqueueable episodes.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"podscribe/internal/logging"
)

// Item is one episode discovered in a feed.
type Item struct {
	PodcastName  string
	EpisodeTitle string
	AudioURL     string
	Published    time.Time
}

// Source fetches and parses RSS feeds.
type Source struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewSource constructs a feed source.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Source{
		parser: gofeed.NewParser(),
		logger: logging.NewComponentLogger(logger, "feed"),
	}
}

// Episodes returns up to limit episodes from a feed, newest first. Items
// without an audio enclosure are skipped. podcastName overrides the feed's
// own title when non-empty so subscriptions keep their operator-chosen names.
func (s *Source) Episodes(ctx context.Context, podcastName, rssURL string, limit int) ([]Item, error) {
	parsed, err := s.parser.ParseURLWithContext(rssURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", rssURL, err)
	}

	name := strings.TrimSpace(podcastName)
	if name == "" {
		name = strings.TrimSpace(parsed.Title)
	}
	if name == "" {
		name = rssURL
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		audioURL := audioEnclosure(entry)
		if audioURL == "" {
			s.logger.Debug("feed item has no audio enclosure, skipping",
				logging.String("feed", rssURL),
				logging.String("title", entry.Title),
			)
			continue
		}
		item := Item{
			PodcastName:  name,
			EpisodeTitle: strings.TrimSpace(entry.Title),
			AudioURL:     audioURL,
		}
		if entry.PublishedParsed != nil {
			item.Published = *entry.PublishedParsed
		}
		items = append(items, item)
	}
	return items, nil
}

func audioEnclosure(entry *gofeed.Item) string {
	for _, enclosure := range entry.Enclosures {
		if enclosure == nil || strings.TrimSpace(enclosure.URL) == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enclosure.Type), "audio/") {
			return strings.TrimSpace(enclosure.URL)
		}
	}
	// Some feeds omit the enclosure type; fall back to the first enclosure
	// with an audio-looking URL.
	for _, enclosure := range entry.Enclosures {
		if enclosure == nil {
			continue
		}
		url := strings.TrimSpace(enclosure.URL)
		lower := strings.ToLower(url)
		for _, ext := range []string{".mp3", ".m4a", ".wav", ".ogg", ".flac", ".aac"} {
			if strings.Contains(lower, ext) {
				return url
			}
		}
	}
	return ""
}
