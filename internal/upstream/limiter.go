// Package upstream holds helpers shared by the adapters that call AI
// providers: request pacing and classification of HTTP error responses.
package upstream

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HeaderRetryAfter is the retry-after header (seconds).
const HeaderRetryAfter = "Retry-After"

// Limiter paces outbound requests with a token bucket and honours the
// provider's Retry-After hints. A nil *Limiter never waits.
type Limiter struct {
	bucket *rate.Limiter

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewLimiter allows rps requests per second with a burst of one.
// It returns nil when rps is not positive.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return nil
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until a request may be sent.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	until := l.blockedUntil
	l.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Observe records a Retry-After hint from a throttled response.
func (l *Limiter) Observe(resp *http.Response) {
	if l == nil || resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}
	secs, err := strconv.Atoi(resp.Header.Get(HeaderRetryAfter))
	if err != nil || secs <= 0 {
		return
	}
	l.Pause(time.Duration(secs) * time.Second)
}

// Pause holds further requests for d.
func (l *Limiter) Pause(d time.Duration) {
	if l == nil || d <= 0 {
		return
	}
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
	l.mu.Unlock()
}
