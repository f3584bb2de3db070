package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wbwatch/internal/config"
	"wbwatch/internal/notifications"
	"wbwatch/internal/services"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyFatal(context.Background(), errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "started",
			send:          func(s notifications.Service) error { return s.NotifyStarted(context.Background(), 3) },
			expectTitle:   "wbwatch - Started",
			expectMessage: "Polling 3 warehouse(s) for new orders",
			expectTags:    "wbwatch,daemon,started",
		},
		{
			name: "cycle blocked",
			send: func(s notifications.Service) error {
				return s.NotifyCycleBlocked(context.Background(), 2, 3, "auth error: W1")
			},
			expectTitle:    "wbwatch - Poll Blocked",
			expectMessage:  "⚠️ 2/3 consecutive cycles made no progress: auth error: W1",
			expectTags:     "wbwatch,poller,warning",
			expectPriority: "high",
		},
		{
			name: "fatal",
			send: func(s notifications.Service) error {
				return s.NotifyFatal(context.Background(), errors.New("ledger unavailable"))
			},
			expectTitle:    "wbwatch - Fatal",
			expectMessage:  "❌ wbwatch stopped: ledger unavailable",
			expectTags:     "wbwatch,error,alert",
			expectPriority: "urgent",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "wbwatch - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "wbwatch,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("send failed: %v", err)
			}
			if gotTitle != tc.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tc.expectTitle)
			}
			if gotBody != tc.expectMessage {
				t.Fatalf("message = %q, want %q", gotBody, tc.expectMessage)
			}
			if gotTags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tc.expectTags)
			}
			if gotPriority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if !errors.Is(err, services.ErrDelivery) || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected delivery error with status, got %v", err)
	}
}
