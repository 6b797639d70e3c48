package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
)

const nullBackendName = "none"

// Null is the terminal fallback: always available, producing a placeholder
// transcript so the pipeline completes degraded rather than failing.
type Null struct{}

// NewNull constructs the placeholder backend.
func NewNull() *Null { return &Null{} }

// Name implements Backend.
func (*Null) Name() string { return nullBackendName }

// Available implements Backend.
func (*Null) Available(ctx context.Context) error { return nil }

// Transcribe implements Backend.
func (*Null) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	text := fmt.Sprintf(
		"[Transcription unavailable: no speech-to-text backend could process %s. "+
			"Configure an API key or install a local model and retry this episode.]",
		filepath.Base(audioPath),
	)
	return Transcript{Text: text, Language: language}, nil
}
