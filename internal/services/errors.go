package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited marks HTTP 429 responses; retried with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork marks transport failures, timeouts and 5xx responses.
	ErrNetwork = errors.New("network error")
	// ErrAuth marks rejected warehouse credentials; never retried.
	ErrAuth = errors.New("auth error")
	// ErrPersistence marks ledger or store failures.
	ErrPersistence = errors.New("persistence error")
	// ErrDelivery marks a failed send to a single recipient.
	ErrDelivery      = errors.New("delivery error")
	ErrConfiguration = errors.New("configuration error")
	// ErrFatal marks conditions that must stop the process.
	ErrFatal = errors.New("fatal error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err carries a marker the API client retries.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}

// Blocking reports whether err indicates the poller cannot make progress
// regardless of retries: rejected credentials or an unusable store.
func Blocking(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrPersistence)
}

// Kind returns a short label for the first marker found in err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
