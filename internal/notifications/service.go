// Package notifications pushes episode lifecycle events to ntfy.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podscribe/internal/config"
)

const userAgent = "podscribe/1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyEpisodeCompleted(ctx context.Context, podcastName, episodeTitle, notePath string) error
	NotifyEpisodeFailed(ctx context.Context, podcastName, episodeTitle string, err error) error
	NotifyTranscriptionDegraded(ctx context.Context, podcastName, episodeTitle string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyEpisodeCompleted(ctx context.Context, podcastName, episodeTitle, notePath string) error {
	message := fmt.Sprintf("Note ready: %s - %s", strings.TrimSpace(podcastName), strings.TrimSpace(episodeTitle))
	if notePath = strings.TrimSpace(notePath); notePath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, notePath)
	}
	return n.send(ctx, payload{
		title:   "Podscribe - Episode Complete",
		message: message,
		tags:    []string{"podscribe", "episode", "completed"},
	})
}

func (n *ntfyService) NotifyEpisodeFailed(ctx context.Context, podcastName, episodeTitle string, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "Podscribe - Episode Failed",
		message:  fmt.Sprintf("Failed: %s - %s\n%s", strings.TrimSpace(podcastName), strings.TrimSpace(episodeTitle), detail),
		tags:     []string{"podscribe", "episode", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyTranscriptionDegraded(ctx context.Context, podcastName, episodeTitle string) error {
	return n.send(ctx, payload{
		title: "Podscribe - Degraded Transcript",
		message: fmt.Sprintf("No transcription backend available for %s - %s; a placeholder note was written",
			strings.TrimSpace(podcastName), strings.TrimSpace(episodeTitle)),
		tags: []string{"podscribe", "episode", "degraded"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Podscribe - Test",
		message:  "Notification system test",
		tags:     []string{"podscribe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyEpisodeCompleted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyEpisodeFailed(context.Context, string, string, error) error     { return nil }
func (noopService) NotifyTranscriptionDegraded(context.Context, string, string) error    { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
