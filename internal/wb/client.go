package wb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wbwatch/internal/config"
	"wbwatch/internal/logging"
	"wbwatch/internal/orders"
	"wbwatch/internal/retry"
	"wbwatch/internal/services"
)

const (
	defaultTimeout  = 30 * time.Second
	cardsPageLimit  = 100
	maxErrorBodyLen = 512
)

// Client talks to the Wildberries marketplace and content APIs on behalf of
// one warehouse at a time; the warehouse's API key is sent with every call.
type Client struct {
	marketplaceURL  string
	contentURL      string
	httpClient      *http.Client
	timeout         time.Duration
	policy          retry.Policy
	maxProductPages int
	logger          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for retry and degradation messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "wb")
	}
}

// WithPolicy replaces the retry policy derived from config.
func WithPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.policy.Sleeper = sleeper
	}
}

// New creates a client from the [wildberries] section of cfg.
func New(cfg *config.Config, opts ...Option) *Client {
	wbCfg := cfg.Wildberries
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		marketplaceURL:  strings.TrimRight(wbCfg.MarketplaceURL, "/"),
		contentURL:      strings.TrimRight(wbCfg.ContentURL, "/"),
		httpClient:      &http.Client{},
		timeout:         timeout,
		maxProductPages: wbCfg.MaxProductPages,
		policy: retry.Policy{
			RateLimitAttempts: wbCfg.RateLimitAttempts,
			NetworkAttempts:   wbCfg.NetworkAttempts,
			BaseDelay:         cfg.RetryBaseDelay(),
			MaxDelay:          cfg.RetryMaxDelay(),
			Jitter:            wbCfg.Jitter,
		},
		logger: logging.NewComponentLogger(nil, "wb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxProductPages <= 0 {
		c.maxProductPages = 10
	}
	return c
}

// statusError is a non-2xx response.
type statusError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

func (e *statusError) RetryAfter() time.Duration { return e.retryAfter }

// call performs one logical request with retries. decode receives the body of
// a 2xx response.
func (c *Client) call(ctx context.Context, stage, method, endpoint, apiKey string, payload any, decode func(io.Reader) error) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return services.Wrap(services.ErrNetwork, stage, method+" "+endpoint, "encode request", err)
		}
	}

	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger := logging.WithContext(services.WithStage(ctx, stage), c.logger)
		logger.Info("retrying wildberries request",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String("endpoint", endpoint),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
		)
	}

	return policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.once(attemptCtx, stage, method, endpoint, apiKey, body, decode)
	})
}

func (c *Client) once(ctx context.Context, stage, method, endpoint, apiKey string, body []byte, decode func(io.Reader) error) error {
	op := method + " " + endpoint
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return retry.Permanent(services.Wrap(services.ErrNetwork, stage, op, "build request", err))
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return services.Wrap(services.ErrNetwork, stage, op, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return classifyStatus(stage, op, resp, string(snippet))
	}

	if decode == nil {
		return nil
	}
	if err := decode(resp.Body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrNetwork, stage, op, "read response", err)
		}
		return retry.Permanent(services.Wrap(services.ErrNetwork, stage, op, "decode response", err))
	}
	return nil
}

func classifyStatus(stage, op string, resp *http.Response, body string) error {
	statusErr := &statusError{StatusCode: resp.StatusCode, Body: body}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		statusErr.retryAfter = retryAfterFromHeaders(resp.Header)
		return services.Wrap(services.ErrRateLimited, stage, op, "rate limited", statusErr)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return retry.Permanent(services.Wrap(services.ErrAuth, stage, op, "credentials rejected", statusErr))
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrNetwork, stage, op, "upstream failure", statusErr)
	default:
		return retry.Permanent(services.Wrap(services.ErrNetwork, stage, op, "request rejected", statusErr))
	}
}

func retryAfterFromHeaders(h http.Header) time.Duration {
	for _, name := range []string{"Retry-After", "X-Ratelimit-Retry"} {
		if d, ok := parseRetryAfter(h.Get(name)); ok {
			return d
		}
	}
	return 0
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func decodeJSON(target any) func(io.Reader) error {
	return func(r io.Reader) error {
		decoder := json.NewDecoder(r)
		decoder.UseNumber()
		return decoder.Decode(target)
	}
}

func withQuery(base string, params url.Values) string {
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

func annotate(ctx context.Context, wh orders.Warehouse) context.Context {
	return services.WithWarehouse(ctx, wh.Name)
}
