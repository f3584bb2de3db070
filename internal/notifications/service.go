package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wbwatch/internal/config"
	"wbwatch/internal/services"
)

const userAgent = "wbwatch/0.1.0"

// Service publishes operator alerts. Order notifications go through Sender.
type Service interface {
	NotifyStarted(ctx context.Context, warehouses int) error
	NotifyCycleBlocked(ctx context.Context, consecutive, threshold int, reason string) error
	NotifyFatal(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an alert service backed by ntfy when configured.
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

func (n *ntfyService) NotifyStarted(ctx context.Context, warehouses int) error {
	data := payload{
		title:   "wbwatch - Started",
		message: fmt.Sprintf("Polling %d warehouse(s) for new orders", warehouses),
		tags:    []string{"wbwatch", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCycleBlocked(ctx context.Context, consecutive, threshold int, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "wbwatch - Poll Blocked",
		message:  fmt.Sprintf("⚠️ %d/%d consecutive cycles made no progress: %s", consecutive, threshold, reason),
		tags:     []string{"wbwatch", "poller", "warning"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFatal(ctx context.Context, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ wbwatch stopped: ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "wbwatch - Fatal",
		message:  builder.String(),
		tags:     []string{"wbwatch", "error", "alert"},
		priority: "urgent",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "wbwatch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"wbwatch", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return services.Wrap(services.ErrDelivery, "ntfy", "build request", "", err)
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
		return services.Wrap(services.ErrDelivery, "ntfy", "send", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrDelivery, "ntfy", "send",
			fmt.Sprintf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStarted(context.Context, int) error                    { return nil }
func (noopService) NotifyCycleBlocked(context.Context, int, int, string) error { return nil }
func (noopService) NotifyFatal(context.Context, error) error                   { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
