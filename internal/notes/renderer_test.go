package notes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRenderWritesFrontmatterAndSections(t *testing.T) {
	dir := t.TempDir()
	renderer := NewRenderer(dir)

	path, err := renderer.Render(Note{
		PodcastName:  "Go Time",
		EpisodeTitle: "Episode 42: Generics!",
		EpisodeURL:   "https://example.com/ep42.mp3",
		BackendUsed:  "openai",
		Language:     "en",
		Duration:     95 * time.Second,
		Transcript:   "Hello and welcome.",
		Summary:      "A chat about generics.",
		ProcessedAt:  time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := filepath.Dir(path); got != filepath.Join(dir, "Go-Time") {
		t.Fatalf("podcast dir = %q", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	body := string(data)
	for _, fragment := range []string{
		`podcast: "Go Time"`,
		`transcribed_with: "openai"`,
		`duration_seconds: 95`,
		`degraded: false`,
		"## Summary",
		"A chat about generics.",
		"## Transcript",
		"Hello and welcome.",
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("note missing %q:\n%s", fragment, body)
		}
	}
}

func TestRenderDegradedNoteCarriesWarning(t *testing.T) {
	renderer := NewRenderer(t.TempDir())
	path, err := renderer.Render(Note{
		PodcastName:  "Go Time",
		EpisodeTitle: "Episode 1",
		BackendUsed:  "none",
		Transcript:   "[Transcription unavailable]",
		Degraded:     true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "degraded: true") {
		t.Fatal("frontmatter missing degraded flag")
	}
	if !strings.Contains(string(data), "Degraded result") {
		t.Fatal("note missing degraded warning")
	}
	if strings.Contains(string(data), "## Summary") {
		t.Fatal("empty summary should not render a section")
	}
}

func TestRenderOverwritesOnReprocess(t *testing.T) {
	renderer := NewRenderer(t.TempDir())
	note := Note{PodcastName: "P", EpisodeTitle: "E", BackendUsed: "local", Transcript: "first"}

	first, err := renderer.Render(note)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	note.Transcript = "second"
	second, err := renderer.Render(note)
	if err != nil {
		t.Fatalf("Render again: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	data, _ := os.ReadFile(second)
	if !strings.Contains(string(data), "second") {
		t.Fatal("reprocess did not overwrite note")
	}
}

func TestSafeNameSanitizes(t *testing.T) {
	cases := map[string]string{
		"Go Time":             "Go-Time",
		"Ep. 1: What?  Why!":  "Ep.-1-What-Why",
		"///":                 "untitled",
		"trailing punct!!!":   "trailing-punct",
		"unicode — em dashes": "unicode-em-dashes",
	}
	for in, want := range cases {
		if got := safeName(in); got != want {
			t.Fatalf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}
