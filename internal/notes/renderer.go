// Package notes renders finished episodes into Markdown files with YAML
// frontmatter, laid out one directory per podcast under the notes root.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Note carries everything the renderer writes for one episode.
type Note struct {
	PodcastName  string
	EpisodeTitle string
	EpisodeURL   string
	BackendUsed  string
	Language     string
	Duration     time.Duration
	Transcript   string
	Summary      string
	// Degraded marks a note whose transcript is a placeholder or whose
	// summary could not be produced.
	Degraded    bool
	ProcessedAt time.Time
}

// Renderer writes notes under a base directory.
type Renderer struct {
	baseDir string
}

// NewRenderer constructs a renderer rooted at baseDir.
func NewRenderer(baseDir string) *Renderer {
	return &Renderer{baseDir: baseDir}
}

// Render writes the note and returns its path. Existing files for the same
// episode are overwritten; reprocessing replaces the old note.
func (r *Renderer) Render(note Note) (string, error) {
	if strings.TrimSpace(note.PodcastName) == "" || strings.TrimSpace(note.EpisodeTitle) == "" {
		return "", fmt.Errorf("render note: podcast and episode names required")
	}

	dir := filepath.Join(r.baseDir, safeName(note.PodcastName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("render note: create podcast dir: %w", err)
	}

	path := filepath.Join(dir, safeName(note.EpisodeTitle)+".md")
	if err := os.WriteFile(path, []byte(renderBody(note)), 0o644); err != nil {
		return "", fmt.Errorf("render note: write file: %w", err)
	}
	return path, nil
}

func renderBody(note Note) string {
	processedAt := note.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "podcast: %s\n", yamlQuote(note.PodcastName))
	fmt.Fprintf(&b, "episode: %s\n", yamlQuote(note.EpisodeTitle))
	if note.EpisodeURL != "" {
		fmt.Fprintf(&b, "source: %s\n", yamlQuote(note.EpisodeURL))
	}
	fmt.Fprintf(&b, "transcribed_with: %s\n", yamlQuote(note.BackendUsed))
	if note.Language != "" {
		fmt.Fprintf(&b, "language: %s\n", yamlQuote(note.Language))
	}
	if note.Duration > 0 {
		fmt.Fprintf(&b, "duration_seconds: %d\n", int(note.Duration.Seconds()))
	}
	fmt.Fprintf(&b, "processed_at: %s\n", processedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "degraded: %t\n", note.Degraded)
	b.WriteString("tags: [podcast, transcript]\n")
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", note.EpisodeTitle)

	if note.Degraded {
		b.WriteString("> [!warning] Degraded result\n")
		b.WriteString("> This note was produced without a working transcription or summarization backend. Retry the episode after fixing the configuration.\n\n")
	}

	if summary := strings.TrimSpace(note.Summary); summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Transcript\n\n")
	b.WriteString(strings.TrimSpace(note.Transcript))
	b.WriteString("\n")
	return b.String()
}

// safeName turns arbitrary podcast and episode titles into filesystem-safe
// names, preserving enough of the original to stay recognizable.
func safeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '.' || r == '_' || r == '(' || r == ')':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	const maxLen = 120
	if len(out) > maxLen {
		out = strings.Trim(out[:maxLen], "-")
	}
	return out
}

func yamlQuote(value string) string {
	value = strings.ReplaceAll(value, `"`, `\"`)
	value = strings.ReplaceAll(value, "\n", " ")
	return `"` + value + `"`
}
