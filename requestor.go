package grawcore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// minUserAgentLength guards against the placeholder user agents Reddit
	// throttles aggressively.
	minUserAgentLength = 7
)

// RawResponse is the result of a completed HTTP exchange: status, headers,
// and the fully-read body. Requestor returns it regardless of status code;
// classification happens at the Session layer.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Requestor is a thin adapter over an *http.Client. It attaches the
// configured User-Agent to every outgoing call and reads response bodies to
// completion so connections can be reused. It holds no request state and is
// safe for concurrent use.
type Requestor struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewRequestor creates a Requestor around httpClient. If httpClient is nil,
// a client with DefaultTimeout is used. The userAgent identifies the
// application to the remote API and is required; Reddit expects the format
// "platform:app-name:version by /u/username".
func NewRequestor(httpClient *http.Client, userAgent string, logger *slog.Logger) (*Requestor, error) {
	if len(userAgent) < minUserAgentLength {
		return nil, &ConfigError{Field: "UserAgent", Message: "user agent must be a descriptive string, at least 7 characters"}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Requestor{
		client:    httpClient,
		userAgent: userAgent,
		logger:    logger,
	}, nil
}

// UserAgent returns the client identifier attached to every request.
func (r *Requestor) UserAgent() string { return r.userAgent }

// Do executes a single HTTP exchange. params are merged into the URL query.
// header entries are applied after the mandatory User-Agent, so callers may
// not override it. A *TransportError is returned only when the exchange
// itself fails; any completed response, whatever its status, is returned as
// a RawResponse.
func (r *Requestor) Do(ctx context.Context, method, rawURL string, header http.Header, params url.Values, body io.Reader) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: rawURL, Err: err}
	}

	if len(params) > 0 {
		q := req.URL.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return r.do(req)
}

// do executes a prepared request, forcing the configured User-Agent and
// reading the body to completion.
func (r *Requestor) do(req *http.Request) (*RawResponse, error) {
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	if r.logger != nil {
		r.logger.Debug("response",
			"method", req.Method,
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"bytes", len(respBody))
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Close releases idle connections held by the underlying transport.
func (r *Requestor) Close() {
	r.client.CloseIdleConnections()
}
