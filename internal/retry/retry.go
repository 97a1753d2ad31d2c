// Package retry defines the bounded retry policy applied to transient
// request failures. The policy is an explicit value rather than inline
// control flow so backoff behavior can be tested in isolation.
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts bounds the total number of tries for one logical
	// request: the initial attempt plus two retries.
	DefaultMaxAttempts = 3
	// DefaultInitialInterval seeds the exponential backoff.
	DefaultInitialInterval = 500 * time.Millisecond
)

// Policy describes when and how a failed request is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// NewBackOff returns a fresh backoff sequence for one logical request.
	NewBackOff func() backoff.BackOff
	// RetryStatus reports whether an HTTP status is transient.
	RetryStatus func(status int) bool
	// RetryMethod reports whether a method may be retried after a transport
	// failure, where the request may or may not have reached the server.
	RetryMethod func(method string) bool
}

// Default returns the standard policy: 3 attempts, exponential backoff from
// 500ms, transient statuses {429, 5xx}, transport retries for idempotent
// methods only.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		NewBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = DefaultInitialInterval
			bo.MaxElapsedTime = 0
			return bo
		},
		RetryStatus: TransientStatus,
		RetryMethod: IdempotentMethod,
	}
}

// Normalized fills zero fields with defaults so a partially-specified
// Policy behaves sensibly.
func (p Policy) Normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.NewBackOff == nil {
		p.NewBackOff = Default().NewBackOff
	}
	if p.RetryStatus == nil {
		p.RetryStatus = TransientStatus
	}
	if p.RetryMethod == nil {
		p.RetryMethod = IdempotentMethod
	}
	return p
}

// TransientStatus reports whether status is worth retrying: 429 and all
// 5xx responses.
func TransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// IdempotentMethod reports whether a transport-level failure of method is
// safe to retry per RFC 9110.
func IdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
