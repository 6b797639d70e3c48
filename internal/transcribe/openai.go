package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/services"
)

const defaultOpenAITimeout = 5 * time.Minute

// OpenAI transcribes audio through the hosted transcription API.
type OpenAI struct {
	cfg        config.OpenAIBackend
	httpClient *http.Client
}

// OpenAIOption customizes the backend.
type OpenAIOption func(*OpenAI)

// WithOpenAIHTTPClient overrides the default HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// NewOpenAI constructs the hosted backend.
func NewOpenAI(cfg config.OpenAIBackend, opts ...OpenAIOption) *OpenAI {
	timeout := defaultOpenAITimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	o := &OpenAI{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Backend.
func (o *OpenAI) Name() string { return "openai" }

// Available implements Backend.
func (o *OpenAI) Available(ctx context.Context) error {
	if strings.TrimSpace(o.cfg.APIKey) == "" {
		return services.Wrap(services.ErrBackendUnavailable, "openai", "available", "api key not configured", nil)
	}
	return nil
}

type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe implements Backend. The audio file is streamed into the
// multipart body so large episodes never sit in memory.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	var empty Transcript

	file, err := os.Open(audioPath)
	if err != nil {
		return empty, services.Wrap(services.ErrBackendUnavailable, "openai", "open audio", audioPath, err)
	}
	defer file.Close()

	pipeReader, pipeWriter := io.Pipe()
	form := multipart.NewWriter(pipeWriter)
	go func() {
		err := writeTranscriptionForm(form, file, filepath.Base(audioPath), o.cfg.Model, language)
		_ = pipeWriter.CloseWithError(err)
	}()

	endpoint := strings.TrimRight(o.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pipeReader)
	if err != nil {
		return empty, services.Wrap(services.ErrBackendUnavailable, "openai", "request", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return empty, classifyOpenAINetError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrBackendTransient, "openai", "read response", "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, classifyOpenAIStatus(resp.StatusCode, body)
	}

	var payload verboseTranscription
	if err := json.Unmarshal(body, &payload); err != nil {
		return empty, services.Wrap(services.ErrBackendTransient, "openai", "decode response", "", err)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return empty, services.Wrap(services.ErrBackendTransient, "openai", "decode response", "empty transcript", nil)
	}

	return Transcript{
		Text:     strings.TrimSpace(payload.Text),
		Language: payload.Language,
		Duration: time.Duration(payload.Duration * float64(time.Second)),
	}, nil
}

func writeTranscriptionForm(form *multipart.Writer, file io.Reader, filename, model, language string) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.WriteField("model", model); err != nil {
		return err
	}
	if language != "" {
		if err := form.WriteField("language", language); err != nil {
			return err
		}
	}
	if err := form.WriteField("response_format", "verbose_json"); err != nil {
		return err
	}
	return form.Close()
}

func classifyOpenAIStatus(code int, body []byte) error {
	detail := fmt.Sprintf("http %d: %s", code, summarizeBody(body))
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return services.Wrap(services.ErrBackendTransient, "openai", "transcribe", detail, nil)
	default:
		// Bad credentials, quota exhaustion, or an unsupported file. None of
		// these heal on retry, so fall through to the next backend.
		return services.Wrap(services.ErrBackendUnavailable, "openai", "transcribe", detail, nil)
	}
}

func classifyOpenAINetError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "request failed", err)
	}
	return services.Wrap(services.ErrBackendTransient, "openai", "transcribe", "", err)
}

func summarizeBody(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	const limit = 160
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}
