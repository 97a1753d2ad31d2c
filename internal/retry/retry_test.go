package retry

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestTransientStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{520, true}, // Cloudflare's unknown-error status
	}

	for _, tc := range testCases {
		if got := TransientStatus(tc.status); got != tc.want {
			t.Errorf("TransientStatus(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestIdempotentMethod(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		method string
		want   bool
	}{
		{http.MethodGet, true},
		{http.MethodHead, true},
		{http.MethodOptions, true},
		{http.MethodPut, true},
		{http.MethodDelete, true},
		{http.MethodPost, false},
		{http.MethodPatch, false},
	}

	for _, tc := range testCases {
		if got := IdempotentMethod(tc.method); got != tc.want {
			t.Errorf("IdempotentMethod(%s) = %v, want %v", tc.method, got, tc.want)
		}
	}
}

func TestNormalized_FillsDefaults(t *testing.T) {
	t.Parallel()

	policy := Policy{}.Normalized()

	if policy.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", policy.MaxAttempts, DefaultMaxAttempts)
	}
	if policy.NewBackOff == nil || policy.RetryStatus == nil || policy.RetryMethod == nil {
		t.Error("Normalized() left nil fields")
	}

	bo := policy.NewBackOff()
	first := bo.NextBackOff()
	second := bo.NextBackOff()
	if first <= 0 || second <= 0 {
		t.Errorf("backoff intervals = %v, %v, want positive", first, second)
	}
}

func TestNormalized_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxAttempts: 7}.Normalized()
	if policy.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", policy.MaxAttempts)
	}
}

func TestSleep_ReturnsOnContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, time.Minute); err == nil {
		t.Error("Sleep() error = nil on canceled context")
	}
}

func TestSleep_ZeroDurationReturnsImmediately(t *testing.T) {
	t.Parallel()

	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) error = %v", err)
	}
}
