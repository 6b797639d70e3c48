package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"podscribe/internal/testsupport"
)

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := NewService(cfg)
	if _, ok := service.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", service)
	}
	if err := service.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification: %v", err)
	}
}

func TestNtfySendsHeadersAndBody(t *testing.T) {
	var (
		gotTitle, gotTags, gotPriority, gotBody string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	service := NewService(cfg)

	err := service.NotifyEpisodeFailed(context.Background(), "Go Time", "Episode 1", errors.New("download: http 500"))
	if err != nil {
		t.Fatalf("NotifyEpisodeFailed: %v", err)
	}
	if gotTitle != "Podscribe - Episode Failed" {
		t.Fatalf("title = %q", gotTitle)
	}
	if gotPriority != "high" {
		t.Fatalf("priority = %q", gotPriority)
	}
	if !strings.Contains(gotTags, "failed") {
		t.Fatalf("tags = %q", gotTags)
	}
	if !strings.Contains(gotBody, "download: http 500") {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestNtfySurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	service := NewService(cfg)

	err := service.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
