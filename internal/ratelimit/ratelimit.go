// Package ratelimit enforces per-key fixed-window quotas over a shared
// counter backend.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadkit/gateway/internal/metrics"
)

// Counter atomically increments a windowed counter and returns the value
// after the increment. ttl bounds how long the counter must be retained.
type Counter interface {
	Increment(ctx context.Context, keyID, bucket string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of one check. Limit, Remaining and Reset describe
// the minute window.
type Decision struct {
	Allowed   bool
	Degraded  bool
	Limit     int
	Remaining int
	Reset     time.Time
	// RetryAfter is set when the request was rejected.
	RetryAfter time.Duration
}

// Limiter applies per-minute and per-day quotas.
type Limiter struct {
	counter  Counter
	logger   *slog.Logger
	failOpen bool
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithFailOpen sets whether backend failures admit the request.
func WithFailOpen(open bool) Option {
	return func(l *Limiter) { l.failOpen = open }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. Backend failures admit requests unless
// WithFailOpen(false) is given.
func New(counter Counter, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		counter:  counter,
		logger:   logger,
		failOpen: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MinuteBucket and DayBucket name the UTC windows containing t.
func MinuteBucket(t time.Time) string { return "m:" + t.UTC().Format("200601021504") }
func DayBucket(t time.Time) string    { return "d:" + t.UTC().Format("20060102") }

// CheckAndConsume counts one request against both windows and reports
// whether it fits. Both counters advance even when the request is rejected.
// A limit of zero or less disables that window.
func (l *Limiter) CheckAndConsume(ctx context.Context, keyID string, perMinute, perDay int) Decision {
	now := l.now().UTC()
	minuteEnd := now.Truncate(time.Minute).Add(time.Minute)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	d := Decision{Allowed: true, Limit: perMinute, Reset: minuteEnd}

	minuteHits, err := l.counter.Increment(ctx, keyID, MinuteBucket(now), 2*time.Minute)
	if err != nil {
		return l.degraded(keyID, d, err)
	}
	dayHits, err := l.counter.Increment(ctx, keyID, DayBucket(now), 25*time.Hour)
	if err != nil {
		return l.degraded(keyID, d, err)
	}

	if perMinute > 0 {
		d.Remaining = max(perMinute-int(minuteHits), 0)
		if minuteHits > int64(perMinute) {
			d.Allowed = false
			d.RetryAfter = minuteEnd.Sub(now)
		}
	}
	if perDay > 0 && dayHits > int64(perDay) {
		d.Allowed = false
		d.RetryAfter = max(d.RetryAfter, dayEnd.Sub(now))
	}

	if !d.Allowed {
		metrics.RateLimitRejections.Inc()
	}
	return d
}

func (l *Limiter) degraded(keyID string, d Decision, err error) Decision {
	metrics.RateLimitDegraded.Inc()
	l.logger.Warn("rate limit check failed",
		"key_id", keyID,
		"fail_open", l.failOpen,
		"error", err,
	)
	d.Degraded = true
	d.Allowed = l.failOpen
	d.Remaining = d.Limit
	return d
}
