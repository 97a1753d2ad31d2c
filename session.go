package grawcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jamesprial/grawcore/internal/ratelimit"
	"github.com/jamesprial/grawcore/internal/retry"
)

// DefaultAPIURL is the base URL for authenticated Reddit resource calls.
const DefaultAPIURL = "https://oauth.reddit.com/"

// maxErrorBodyBytes bounds how much of a failed response body is carried
// inside error values.
const maxErrorBodyBytes = 4096

// SessionConfig configures a Session. Authorizer is required.
type SessionConfig struct {
	// Authorizer supplies bearer tokens. One Session binds to exactly one
	// Authorizer for its lifetime.
	Authorizer *Authorizer

	// BaseURL for resource requests. Defaults to DefaultAPIURL.
	BaseURL string

	// RateLimit tunes throttling. Zero values take defaults.
	RateLimit ratelimit.Config

	// Retry controls transient-failure behavior. Zero values take defaults.
	Retry retry.Policy

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger
}

// RequestOptions carries the optional parts of a request. At most one of
// Data and JSON should be set.
type RequestOptions struct {
	// Params are merged into the URL query.
	Params url.Values
	// Data is sent form-encoded in the request body.
	Data url.Values
	// JSON is marshaled and sent as an application/json body.
	JSON any
}

// Session is the sole caller-facing entry point for resource requests. It
// applies the rate-limit delay, attaches the bearer token, dispatches via
// the Authorizer's Requestor, retries transient failures, refreshes the
// token once on a 401, and translates everything else into typed errors.
// Safe for concurrent use. Close releases the underlying transport.
type Session struct {
	authorizer *Authorizer
	requestor  *Requestor
	baseURL    *url.URL
	limiter    *ratelimit.Tracker
	retry      retry.Policy
	logger     *slog.Logger
}

// NewSession creates a Session bound to authorizer's token lifecycle and
// transport.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		return nil, &ConfigError{Message: "config cannot be nil"}
	}
	if cfg.Authorizer == nil {
		return nil, &ConfigError{Field: "Authorizer", Message: "authorizer is required"}
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultAPIURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, &ConfigError{Field: "BaseURL", Message: "invalid base URL: " + err.Error()}
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	rateCfg := cfg.RateLimit
	if rateCfg.Logger == nil {
		rateCfg.Logger = cfg.Logger
	}

	return &Session{
		authorizer: cfg.Authorizer,
		requestor:  cfg.Authorizer.requestor,
		baseURL:    parsed,
		limiter:    ratelimit.New(rateCfg),
		retry:      cfg.Retry.Normalized(),
		logger:     cfg.Logger,
	}, nil
}

// Get issues a GET request for path with optional query params.
func (s *Session) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return s.Request(ctx, http.MethodGet, path, &RequestOptions{Params: params})
}

// Post issues a form-encoded POST request for path.
func (s *Session) Post(ctx context.Context, path string, data url.Values) (json.RawMessage, error) {
	return s.Request(ctx, http.MethodPost, path, &RequestOptions{Data: data})
}

// Request performs one logical API call and returns the raw JSON body.
// path is resolved against the session's base URL. A 2xx response with an
// empty body yields a nil result with no error. All failures are typed; see
// the package error definitions.
func (s *Session) Request(ctx context.Context, method, path string, opts *RequestOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	resolved, err := s.baseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, &ConfigError{Field: "path", Message: "invalid request path: " + err.Error()}
	}
	target := resolved.String()

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, err
	}

	bo := s.retry.NewBackOff()
	refreshed401 := false
	var lastResp *RawResponse

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		token, err := s.authorizer.Token(ctx)
		if err != nil {
			return nil, err
		}

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token.AccessToken)
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		resp, err := s.requestor.Do(ctx, method, target, header, opts.Params, reader)
		if err != nil {
			var transportErr *TransportError
			if errors.As(err, &transportErr) && s.retry.RetryMethod(method) && attempt < s.retry.MaxAttempts {
				if s.logger != nil {
					s.logger.Warn("retrying after transport failure",
						"method", method, "url", target, "attempt", attempt, "error", err)
				}
				if err := retry.Sleep(ctx, bo.NextBackOff()); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		s.limiter.Observe(resp.Header)
		lastResp = resp

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return parseBody(target, resp)

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed401 {
				return nil, &AuthError{ResponseError: responseError(target, resp)}
			}
			refreshed401 = true
			// Drop the rejected token; the next Token call refreshes or
			// re-authorizes, single-flight.
			s.authorizer.Invalidate(token.AccessToken)
			if s.logger != nil {
				s.logger.Warn("retrying after 401 with refreshed token",
					"method", method, "url", target)
			}
			attempt--
			continue

		case resp.StatusCode == http.StatusForbidden:
			return nil, &ForbiddenError{ResponseError: responseError(target, resp)}

		case resp.StatusCode == http.StatusNotFound:
			return nil, &NotFoundError{ResponseError: responseError(target, resp)}

		case s.retry.RetryStatus(resp.StatusCode):
			if attempt < s.retry.MaxAttempts {
				if s.logger != nil {
					s.logger.Warn("retrying after transient status",
						"method", method, "url", target, "status", resp.StatusCode, "attempt", attempt)
				}
				if err := retry.Sleep(ctx, bo.NextBackOff()); err != nil {
					return nil, err
				}
				continue
			}
			// fall through to exhaustion below

		default:
			return nil, badRequestError(target, resp)
		}
	}

	serverErr := &ServerError{Attempts: s.retry.MaxAttempts}
	if lastResp != nil {
		serverErr.ResponseError = responseError(target, lastResp)
	} else {
		serverErr.URL = target
	}
	return nil, serverErr
}

// Close releases the transport resources held by the session's Requestor.
func (s *Session) Close() error {
	s.requestor.Close()
	return nil
}

func encodeBody(opts *RequestOptions) (body []byte, contentType string, err error) {
	switch {
	case opts.Data != nil && opts.JSON != nil:
		return nil, "", &ConfigError{Field: "RequestOptions", Message: "Data and JSON are mutually exclusive"}
	case opts.Data != nil:
		return []byte(opts.Data.Encode()), "application/x-www-form-urlencoded", nil
	case opts.JSON != nil:
		encoded, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, "", &ConfigError{Field: "RequestOptions", Message: "cannot marshal JSON body: " + err.Error()}
		}
		return encoded, "application/json", nil
	default:
		return nil, "", nil
	}
}

// parseBody turns a successful response into raw JSON. An empty body is an
// explicit no-content result, not an error.
func parseBody(target string, resp *RawResponse) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, &ParseError{URL: target, Body: truncate(resp.Body)}
	}
	return json.RawMessage(trimmed), nil
}

func responseError(target string, resp *RawResponse) ResponseError {
	return ResponseError{
		StatusCode: resp.StatusCode,
		URL:        target,
		Body:       truncate(resp.Body),
	}
}

// badRequestError surfaces the structured {error, message} body Reddit
// returns on most 4xx responses, unmodified.
func badRequestError(target string, resp *RawResponse) *BadRequestError {
	out := &BadRequestError{ResponseError: responseError(target, resp)}

	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Reason  string          `json:"reason"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err == nil {
		// error may be a code string or a numeric status
		out.ErrorCode = strings.Trim(string(payload.Error), `"`)
		out.Message = payload.Message
		if out.Message == "" {
			out.Message = payload.Reason
		}
	}
	return out
}

func truncate(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return string(body)
}
