package grawcore

import (
	"fmt"
	"strings"
)

// ConfigError indicates a problem with how a component was constructed.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// TransportError indicates the HTTP exchange itself could not complete:
// DNS failure, connection refused, timeout. It is distinct from a completed
// exchange that returned a non-2xx status.
type TransportError struct {
	// Method and URL identify the request that failed
	Method string
	URL    string
	// Err contains the underlying error from the HTTP client
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// OAuthError indicates the token endpoint rejected a grant or refresh
// exchange. The caller must intervene (fix credentials, re-authorize).
type OAuthError struct {
	// StatusCode is the HTTP status returned by the token endpoint
	StatusCode int
	// ErrorCode is the OAuth2 error code, e.g. "invalid_grant"
	ErrorCode string
	// Description is the server-provided error_description, if any
	Description string
	// Body contains the raw response body from the token endpoint
	Body string
}

func (e *OAuthError) Error() string {
	var sb strings.Builder
	sb.WriteString("oauth error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status code %d", e.StatusCode)
	}
	if e.ErrorCode != "" {
		fmt.Fprintf(&sb, ", code %s", e.ErrorCode)
	}
	if e.Description != "" {
		fmt.Fprintf(&sb, ": %s", e.Description)
	} else if e.Body != "" && e.ErrorCode == "" {
		fmt.Fprintf(&sb, ", body: %q", e.Body)
	}
	return sb.String()
}

// ExpiredTokenError indicates the current token expired and no refresh path
// exists for the grant that produced it. The caller must re-authorize.
type ExpiredTokenError struct {
	// GrantType names the grant that produced the expired token, if known
	GrantType string
}

func (e *ExpiredTokenError) Error() string {
	if e.GrantType != "" {
		return fmt.Sprintf("access token expired and %s grant cannot be refreshed; re-authorize", e.GrantType)
	}
	return "access token expired and no refresh path exists; re-authorize"
}

// ResponseError carries the context of a completed HTTP exchange that the
// session classified as a failure. It is embedded by the typed status
// errors below.
type ResponseError struct {
	// StatusCode is the HTTP status of the failed response
	StatusCode int
	// URL is the URL that was requested
	URL string
	// Body contains the raw response body, which may hold more details
	Body string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// AuthError indicates a 401 that persisted after one token refresh attempt.
// The credentials are no longer accepted for this resource.
type AuthError struct {
	ResponseError
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: status %d persisted after token refresh", e.URL, e.StatusCode)
}

// ForbiddenError indicates a 403: the authorization is insufficient for the
// resource. Refreshing the token will not help.
type ForbiddenError struct {
	ResponseError
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s returned status 403", e.URL)
}

// NotFoundError indicates a 404.
type NotFoundError struct {
	ResponseError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s returned status 404", e.URL)
}

// BadRequestError indicates a non-retryable 4xx other than 401/403/404.
// ErrorCode and Message surface the structured error body Reddit typically
// returns, unmodified.
type BadRequestError struct {
	ResponseError
	// ErrorCode is the API-provided error identifier, if present
	ErrorCode string
	// Message is the API-provided human-readable message, if present
	Message string
}

func (e *BadRequestError) Error() string {
	if e.ErrorCode != "" || e.Message != "" {
		return fmt.Sprintf("bad request to %s (status %d, code %s): %s", e.URL, e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("bad request to %s (status %d)", e.URL, e.StatusCode)
}

// ServerError indicates retries were exhausted on transient failures
// (429, 503, other 5xx). It carries the last response observed.
type ServerError struct {
	ResponseError
	// Attempts is the number of requests made before giving up
	Attempts int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
}

// ParseError indicates a successful response whose body could not be
// decoded as JSON.
type ParseError struct {
	// URL is the URL whose response failed to parse
	URL string
	// Body contains a prefix of the unparseable body
	Body string
	// Err contains the underlying decode error if available
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error for response from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for response from %s", e.URL)
}

func (e *ParseError) Unwrap() error { return e.Err }
