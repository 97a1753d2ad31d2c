// Package ratelimit tracks server-reported API quota and throttles requests
// so the remaining budget is spread evenly across the reset window instead
// of being burned in a burst and rejected near the window boundary.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerMinute caps steady-state throughput before any
	// server feedback arrives. Reddit allows 60 requests per minute for
	// free-tier OAuth clients.
	DefaultRequestsPerMinute = 60
	// DefaultBurst allows short spikes above the steady-state rate.
	DefaultBurst = 10
	// DefaultSpreadThreshold is the remaining-quota level below which
	// responses start being delayed to spread out the rest of the window.
	DefaultSpreadThreshold = 10

	secondsPerMinute  = 60.0
	parseFloatBitSize = 64
)

// HeaderNames identifies the response headers carrying quota state. The
// exact names and units are an external API contract, so they are
// configuration rather than constants.
type HeaderNames struct {
	// Remaining reports calls left in the current window.
	Remaining string
	// Used reports calls consumed in the current window.
	Used string
	// Reset reports seconds until the window resets.
	Reset string
	// RetryAfter reports a server-mandated hold in seconds.
	RetryAfter string
}

// DefaultHeaderNames returns Reddit's rate-limit header names.
func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		Remaining:  "X-Ratelimit-Remaining",
		Used:       "X-Ratelimit-Used",
		Reset:      "X-Ratelimit-Reset",
		RetryAfter: "Retry-After",
	}
}

// Config controls a Tracker.
type Config struct {
	// Headers overrides DefaultHeaderNames when non-zero.
	Headers HeaderNames
	// RequestsPerMinute caps proactive throughput. Defaults to
	// DefaultRequestsPerMinute if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to
	// DefaultBurst if zero.
	Burst int
	// SpreadThreshold is the remaining-quota level below which delays kick
	// in. Defaults to DefaultSpreadThreshold if zero.
	SpreadThreshold float64
	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger
}

// Tracker is the stateful rate governor for one session. It combines a
// proactive token-bucket floor with the server's own quota reports. All
// methods are safe for concurrent use; delay computation and slot
// reservation are atomic so concurrent callers account for each other.
type Tracker struct {
	headers   HeaderNames
	limiter   *rate.Limiter
	threshold float64
	logger    *slog.Logger

	mu          sync.Mutex
	known       bool
	remaining   float64
	used        float64
	resetAt     time.Time
	lastUpdated time.Time
	holdUntil   time.Time // Retry-After driven, takes precedence
}

// New returns a Tracker with unknown quota state; until the first response
// carrying rate headers is observed, only the proactive floor applies.
func New(cfg Config) *Tracker {
	headers := cfg.Headers
	if headers == (HeaderNames{}) {
		headers = DefaultHeaderNames()
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	threshold := cfg.SpreadThreshold
	if threshold <= 0 {
		threshold = DefaultSpreadThreshold
	}

	return &Tracker{
		headers:   headers,
		limiter:   rate.NewLimiter(rate.Limit(rpm/secondsPerMinute), burst),
		threshold: threshold,
		logger:    cfg.Logger,
	}
}

// Observe updates quota state from a response's headers. Responses without
// the remaining/reset pair leave prior state untouched; the state never
// resets to zero just because headers were absent.
func (t *Tracker) Observe(header http.Header) {
	t.observe(header, time.Now())
}

func (t *Tracker) observe(header http.Header, now time.Time) {
	if retryAfter := header.Get(t.headers.RetryAfter); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize); err == nil && seconds > 0 {
			t.hold(now.Add(time.Duration(seconds * float64(time.Second))))
		}
	}

	remainingHeader := header.Get(t.headers.Remaining)
	resetHeader := header.Get(t.headers.Reset)
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, parseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, parseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds < 0 {
		return
	}

	used := 0.0
	if usedHeader := header.Get(t.headers.Used); usedHeader != "" {
		if parsed, err := strconv.ParseFloat(usedHeader, parseFloatBitSize); err == nil {
			used = parsed
		}
	}

	t.mu.Lock()
	t.known = true
	t.remaining = remaining
	t.used = used
	t.resetAt = now.Add(time.Duration(resetSeconds * float64(time.Second)))
	t.lastUpdated = now
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Debug("rate limit observed",
			"remaining", remaining, "used", used, "reset_seconds", resetSeconds)
	}
}

func (t *Tracker) hold(until time.Time) {
	t.mu.Lock()
	if until.After(t.holdUntil) {
		t.holdUntil = until
	}
	t.mu.Unlock()
}

// Delay returns how long the next request must wait to stay within the
// server's budget. It is always >= 0 and is 0 whenever quota state is
// unknown or the window has already reset.
func (t *Tracker) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delayLocked(time.Now())
}

func (t *Tracker) delayLocked(now time.Time) time.Duration {
	if hold := t.holdUntil.Sub(now); hold > 0 {
		return hold
	}
	if !t.known {
		return 0
	}

	window := t.resetAt.Sub(now)
	if window <= 0 {
		// The window rolled over; the server will report fresh numbers on
		// the next response.
		t.known = false
		return 0
	}

	if t.remaining <= 0 {
		return window
	}
	if t.remaining > t.threshold {
		return 0
	}
	return time.Duration(float64(window) / t.remaining)
}

// Wait blocks until the next request may proceed, honoring ctx. The
// computed delay reserves one slot of the remaining quota, so two
// concurrent callers never both ride on the same observation.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	delay := t.delayLocked(time.Now())
	if t.known && t.remaining > 0 {
		t.remaining--
	}
	t.mu.Unlock()

	if delay > 0 {
		if t.logger != nil {
			t.logger.Debug("rate limit delay", "delay", delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return t.limiter.Wait(ctx)
}

// Snapshot reports the current quota state for diagnostics. ok is false
// until a response carrying rate headers has been observed.
func (t *Tracker) Snapshot() (remaining, used float64, resetAt time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.used, t.resetAt, t.known
}
