package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"wbwatch/internal/services"
)

const (
	defaultBaseDelay = 2 * time.Second
	defaultMaxDelay  = 60 * time.Second
)

// Policy describes how failed calls are retried. Rate-limited and network
// failures have separate attempt budgets but share one delay curve:
// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, capped at MaxDelay.
type Policy struct {
	RateLimitAttempts int
	NetworkAttempts   int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	// Jitter spreads each delay over [floor, d], where floor is the larger of
	// d/2 and the previous attempt's un-jittered delay. Once capped, delays
	// are not jittered.
	Jitter bool
	// Sleeper replaces the real timer (tests record requested delays).
	Sleeper func(time.Duration)
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)

	random func() float64
}

// RetryAfterError is implemented by errors that carry a server-provided delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying even when it carries a retryable marker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Delay returns the backoff before the next attempt, where attempt is the
// 1-based number of the attempt that just failed.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := p.backoff(attempt)
	if !p.Jitter || delay == 0 {
		return delay
	}

	floor := delay / 2
	if attempt > 1 {
		floor = max(floor, p.backoff(attempt-1))
	}
	if floor >= delay {
		return delay
	}
	rnd := p.random
	if rnd == nil {
		rnd = rand.Float64
	}
	return floor + time.Duration(rnd()*float64(delay-floor))
}

// backoff is the un-jittered delay after attempt.
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		base = defaultBaseDelay
	}
	if base == 0 {
		return 0
	}
	maxDelay := p.maxDelay()
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

// Do runs fn until it succeeds, returns a non-retryable error, or exhausts the
// attempt budget for its failure class. The last error is returned unchanged
// so callers can still classify it with errors.Is.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	var rateLimited, network int
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return err
		}

		switch {
		case errors.Is(err, services.ErrRateLimited):
			rateLimited++
			if rateLimited >= max(p.RateLimitAttempts, 1) {
				return err
			}
		case errors.Is(err, services.ErrNetwork):
			network++
			if network >= max(p.NetworkAttempts, 1) {
				return err
			}
		default:
			return err
		}

		delay := p.Delay(attempt)
		var hinted RetryAfterError
		if errors.As(err, &hinted) && hinted.RetryAfter() > delay {
			delay = p.capDelay(hinted.RetryAfter())
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry interrupted: %w", errors.Join(err, services.ErrNetwork))
		}
	}
}

// WithRandom returns a copy of p that draws jitter from rnd.
func (p Policy) WithRandom(rnd func() float64) Policy {
	p.random = rnd
	return p
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
