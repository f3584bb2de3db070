package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"wbwatch/internal/config"
	"wbwatch/internal/logging"
	"wbwatch/internal/retry"
	"wbwatch/internal/services"
)

// Sender delivers one message to one recipient. Failures carry
// services.ErrDelivery and affect only that recipient.
type Sender interface {
	Send(ctx context.Context, recipientID int64, msg Message) error
}

// TelegramOption configures the Bot API sender.
type TelegramOption func(*telegramSender)

// WithTelegramHTTPClient overrides the default HTTP client.
func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(s *telegramSender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTelegramSleeper overrides how rate-limit waits are performed.
func WithTelegramSleeper(sleeper func(time.Duration)) TelegramOption {
	return func(s *telegramSender) {
		s.policy.Sleeper = sleeper
	}
}

// NewSender builds the Telegram Bot API sender. With telegram.dry_run set,
// messages are logged instead of sent.
func NewSender(cfg *config.Config, logger *slog.Logger, opts ...TelegramOption) Sender {
	logger = logging.NewComponentLogger(logger, "telegram")
	if cfg.Telegram.DryRun {
		return &dryRunSender{logger: logger}
	}

	timeout := time.Duration(cfg.Telegram.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &telegramSender{
		baseURL: strings.TrimRight(cfg.Telegram.APIURL, "/") + "/bot" + strings.TrimSpace(cfg.Telegram.BotToken),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		policy: retry.Policy{
			RateLimitAttempts: 2,
			NetworkAttempts:   2,
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type telegramSender struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	policy  retry.Policy
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type botError struct {
	method     string
	status     int
	desc       string
	retryAfter time.Duration
}

func (e *botError) Error() string {
	if e.desc == "" {
		return fmt.Sprintf("%s: http %d", e.method, e.status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.method, e.status, e.desc)
}

func (e *botError) RetryAfter() time.Duration { return e.retryAfter }

// Send posts a photo with the text as caption when a photo URL is present and
// the text fits a caption; otherwise, or when the photo is rejected, it sends
// a plain text message.
func (s *telegramSender) Send(ctx context.Context, recipientID int64, msg Message) error {
	logger := logging.WithContext(ctx, s.logger).With(logging.Recipient(recipientID))

	if msg.PhotoURL != "" && utf8.RuneCountInString(msg.Text) <= captionLimit {
		err := s.call(ctx, "sendPhoto", map[string]any{
			"chat_id": recipientID,
			"photo":   msg.PhotoURL,
			"caption": msg.Text,
		})
		if err == nil {
			return nil
		}
		logger.Info("photo rejected, sending text only", logging.Error(err))
	}

	if err := s.call(ctx, "sendMessage", map[string]any{
		"chat_id": recipientID,
		"text":    msg.Text,
	}); err != nil {
		return services.Wrap(services.ErrDelivery, "telegram", "sendMessage",
			fmt.Sprintf("recipient %d: %v", recipientID, err), nil)
	}
	return nil
}

func (s *telegramSender) call(ctx context.Context, method string, body map[string]any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode %s: %w", method, err))
	}
	return s.policy.Do(ctx, func(ctx context.Context) error {
		return s.post(ctx, method, encoded)
	})
}

func (s *telegramSender) post(ctx context.Context, method string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build %s request: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		// The request URL embeds the bot token; keep it out of the error.
		return fmt.Errorf("%w: %s: transport failure", services.ErrNetwork, method)
	}
	defer resp.Body.Close()

	var parsed botResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode < 300 && parsed.OK {
		return nil
	}

	botErr := &botError{
		method:     method,
		status:     resp.StatusCode,
		desc:       strings.TrimSpace(parsed.Description),
		retryAfter: time.Duration(parsed.Parameters.RetryAfter) * time.Second,
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", services.ErrRateLimited, botErr)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", services.ErrNetwork, botErr)
	default:
		return retry.Permanent(botErr)
	}
}

type dryRunSender struct {
	logger *slog.Logger
}

func (d *dryRunSender) Send(ctx context.Context, recipientID int64, msg Message) error {
	logging.WithContext(ctx, d.logger).Info("dry run: notification not sent",
		logging.Recipient(recipientID),
		logging.String("photo_url", msg.PhotoURL),
		logging.String("text", msg.Text),
	)
	return nil
}
