// Package retry wraps storage and provider calls in a bounded exponential
// backoff policy. Each call to Do builds its own attempt counter and delay,
// so one Policy can be shared by concurrent ingestion workers.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/custodia-labs/verselens-cli/internal/core/domain"
	"github.com/custodia-labs/verselens-cli/internal/logger"
)

// Config controls the retry policy.
type Config struct {
	MaxAttempts  int           // total attempts including the first (default 5)
	InitialDelay time.Duration // first backoff delay (default 500ms)
	MaxDelay     time.Duration // cap on any single backoff (default 10s)
	Throttle     time.Duration // fixed delay before every attempt, including the first
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// FromSettings converts domain retry settings, filling zero values with defaults.
func FromSettings(s domain.RetrySettings) Config {
	return DefaultConfig().With(s)
}

// With returns c with every non-zero field of s applied over it.
func (c Config) With(s domain.RetrySettings) Config {
	if s.MaxAttempts > 0 {
		c.MaxAttempts = s.MaxAttempts
	}
	if s.InitialDelay > 0 {
		c.InitialDelay = s.InitialDelay
	}
	if s.MaxDelay > 0 {
		c.MaxDelay = s.MaxDelay
	}
	if s.Throttle > 0 {
		c.Throttle = s.Throttle
	}
	return c
}

// Policy executes operations under a Config.
type Policy struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a policy. A non-positive MaxAttempts means a single attempt.
func New(cfg Config) *Policy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxDelay > 0 && cfg.InitialDelay > cfg.MaxDelay {
		cfg.InitialDelay = cfg.MaxDelay
	}
	return &Policy{cfg: cfg, sleep: sleepContext}
}

// Config returns the effective configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned unchanged so callers can inspect it with errors.Is.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := p.cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if p.cfg.Throttle > 0 {
			if serr := p.sleep(ctx, p.cfg.Throttle); serr != nil {
				return serr
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsRetryable(err) || attempt == p.cfg.MaxAttempts {
			return err
		}

		wait := withJitter(delay, p.cfg.MaxDelay)
		logger.Warn("%s: attempt %d/%d failed: %v (retrying in %s)",
			op, attempt, p.cfg.MaxAttempts, err, wait.Round(time.Millisecond))
		if serr := p.sleep(ctx, wait); serr != nil {
			return serr
		}
		delay *= 2
		if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
		}
	}
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// withJitter adds up to 50% of delay, then applies the cap.
func withJitter(delay, maxDelay time.Duration) time.Duration {
	if half := int64(delay / 2); half > 0 {
		delay += time.Duration(rand.Int64N(half + 1))
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// transientMarkers are lowercase substrings of network-level failures.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"econnreset",
	"connection refused",
	"broken pipe",
	"no such host",
	"enotfound",
	"eai_again",
	"temporary failure in name resolution",
	"fetch failed",
	"network",
	"database is locked",
}

// IsRetryable reports whether err is worth another attempt: a 429 or 5xx
// status, a network timeout, or a message naming a transient network failure.
// Cancellation and domain conflicts are never retried; a per-request deadline
// counts as a timeout.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrInvalidInput) {
		return false
	}

	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		code := coded.StatusCode()
		if code == 429 || code >= 500 {
			return true
		}
		if code >= 400 {
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
