package grawcore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is Reddit's OAuth2 token endpoint.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	// DefaultRevokeURL is Reddit's token revocation endpoint.
	DefaultRevokeURL = "https://www.reddit.com/api/v1/revoke_token"

	// DefaultExpirySkew is subtracted from a token's lifetime so it is
	// refreshed shortly before the server would start rejecting it.
	DefaultExpirySkew = 10 * time.Second

	refreshFlightKey = "token"
)

// Token is an access credential obtained from a grant exchange. It is
// replaced wholesale by successful exchanges; a failed refresh leaves the
// previous Token intact.
type Token struct {
	AccessToken  string
	TokenType    string
	Scope        []string
	ExpiresAt    time.Time
	RefreshToken string
}

// Valid reports whether the token can still be presented at the given
// instant, allowing for the configured pre-expiry skew.
func (t *Token) Valid(now time.Time, skew time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-skew))
}

// AuthorizerConfig configures an Authorizer. Authenticator and Requestor
// are required; everything else has a default.
type AuthorizerConfig struct {
	// Authenticator supplies the client identity used at the token endpoint.
	Authenticator *Authenticator

	// Requestor dispatches the token-endpoint HTTP calls.
	Requestor *Requestor

	// TokenURL overrides DefaultTokenURL.
	TokenURL string

	// RevokeURL overrides DefaultRevokeURL.
	RevokeURL string

	// ExpirySkew overrides DefaultExpirySkew.
	ExpirySkew time.Duration

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger
}

// Authorizer owns the OAuth2 token lifecycle for one client identity and
// one grant strategy. It moves between unauthorized, authorized, and
// revoked states; an expired token is refreshed or re-acquired before it is
// ever handed to a caller. Safe for concurrent use: refresh is
// single-flight, so simultaneous expiry discovery performs one exchange.
type Authorizer struct {
	authenticator *Authenticator
	requestor     *Requestor
	tokenURL      string
	revokeURL     string
	skew          time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	token   *Token
	grant   Grant // last non-refresh grant, re-run when no refresh path exists
	revoked bool

	group singleflight.Group
}

// NewAuthorizer creates an Authorizer in the unauthorized state.
func NewAuthorizer(cfg *AuthorizerConfig) (*Authorizer, error) {
	if cfg == nil {
		return nil, &ConfigError{Message: "config cannot be nil"}
	}
	if cfg.Authenticator == nil {
		return nil, &ConfigError{Field: "Authenticator", Message: "authenticator is required"}
	}
	if cfg.Requestor == nil {
		return nil, &ConfigError{Field: "Requestor", Message: "requestor is required"}
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}
	skew := cfg.ExpirySkew
	if skew <= 0 {
		skew = DefaultExpirySkew
	}

	return &Authorizer{
		authenticator: cfg.Authenticator,
		requestor:     cfg.Requestor,
		tokenURL:      tokenURL,
		revokeURL:     revokeURL,
		skew:          skew,
		logger:        cfg.Logger,
	}, nil
}

// tokenEndpointResponse is the JSON body returned by the token endpoint.
// Reddit reports some grant rejections inside a 200 body, hence Error.
type tokenEndpointResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope"`
	RefreshToken     string `json:"refresh_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authorize performs the initial grant exchange. On success the Authorizer
// holds a fresh Token and leaves the revoked state if it was in it. On
// failure the previous state is untouched and an *OAuthError is returned.
//
// An ImplicitGrant installs its pre-obtained token directly and requires an
// untrusted authenticator.
func (a *Authorizer) Authorize(ctx context.Context, grant Grant) error {
	if implicit, ok := grant.(ImplicitGrant); ok {
		return a.authorizeImplicit(implicit)
	}

	token, err := a.exchange(ctx, grant)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if refresh, isRefresh := grant.(RefreshTokenGrant); isRefresh {
		// Bootstrapping from a stored refresh token; keep it if the server
		// did not rotate it.
		if token.RefreshToken == "" {
			token.RefreshToken = refresh.RefreshToken
		}
		a.grant = nil
	} else {
		a.grant = grant
	}
	a.token = token
	a.revoked = false
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.Debug("authorized", "grant", grantName(grant), "expires_at", token.ExpiresAt)
	}
	return nil
}

func (a *Authorizer) authorizeImplicit(grant ImplicitGrant) error {
	if a.authenticator.Trusted() {
		return &ConfigError{Field: "Authenticator", Message: "implicit grant requires an untrusted authenticator"}
	}
	if grant.AccessToken == "" {
		return &ConfigError{Field: "Grant", Message: "implicit grant requires an access token"}
	}

	a.mu.Lock()
	a.token = &Token{
		AccessToken: grant.AccessToken,
		TokenType:   "bearer",
		Scope:       slices.Clone(grant.Scope),
		ExpiresAt:   time.Now().Add(grant.ExpiresIn),
	}
	a.grant = grant
	a.revoked = false
	a.mu.Unlock()
	return nil
}

// Refresh exchanges the held refresh token for a new access token. On
// rejection by the token endpoint the Authorizer transitions to the revoked
// state and the caller must re-authorize from scratch.
func (a *Authorizer) Refresh(ctx context.Context) error {
	a.mu.Lock()
	refreshToken := ""
	if a.token != nil {
		refreshToken = a.token.RefreshToken
	}
	a.mu.Unlock()

	if refreshToken == "" {
		return &ConfigError{Message: "no refresh token held; authorize first"}
	}

	token, err := a.exchange(ctx, RefreshTokenGrant{RefreshToken: refreshToken})
	if err != nil {
		var oauthErr *OAuthError
		if errors.As(err, &oauthErr) {
			a.mu.Lock()
			a.token = nil
			a.revoked = true
			a.mu.Unlock()
		}
		return err
	}

	a.mu.Lock()
	// RFC 6749 permits the refresh response to omit a new refresh token.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	a.token = token
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.Debug("token refreshed", "expires_at", token.ExpiresAt)
	}
	return nil
}

// Token returns the active access token, refreshing or re-authorizing first
// if the held token is expired. It never returns an expired token. When the
// token is expired and no refresh path exists (implicit grant, or nothing
// on record), it returns an *ExpiredTokenError.
func (a *Authorizer) Token(ctx context.Context) (*Token, error) {
	if tok := a.validToken(); tok != nil {
		return tok, nil
	}

	// Single-flight: concurrent callers that discover expiry together share
	// one exchange; late arrivals re-check and reuse the fresh token.
	_, err, _ := a.group.Do(refreshFlightKey, func() (any, error) {
		if tok := a.validToken(); tok != nil {
			return nil, nil
		}
		return nil, a.renew(ctx)
	})
	if err != nil {
		return nil, err
	}

	if tok := a.validToken(); tok != nil {
		return tok, nil
	}
	return nil, &ExpiredTokenError{}
}

// validToken returns a copy of the held token if it is still presentable.
func (a *Authorizer) validToken() *Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.token.Valid(time.Now(), a.skew) {
		return nil
	}
	copied := *a.token
	copied.Scope = slices.Clone(a.token.Scope)
	return &copied
}

// renew picks the renewal path for an expired token: refresh when a refresh
// token is held, otherwise re-run the original grant when it supports that.
func (a *Authorizer) renew(ctx context.Context) error {
	a.mu.Lock()
	hasRefresh := a.token != nil && a.token.RefreshToken != ""
	grant := a.grant
	a.mu.Unlock()

	if hasRefresh {
		return a.Refresh(ctx)
	}
	if grant != nil && reauthorizable(grant) {
		return a.Authorize(ctx, grant)
	}
	if grant != nil {
		return &ExpiredTokenError{GrantType: grantName(grant)}
	}
	return &ExpiredTokenError{}
}

// Invalidate marks the held token expired, but only if accessToken is still
// the one held. A stale invalidation (another caller already replaced the
// token) is a no-op, so concurrent 401 handling cannot discard a fresh
// token.
func (a *Authorizer) Invalidate(accessToken string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil && a.token.AccessToken == accessToken {
		a.token.ExpiresAt = time.Time{}
	}
}

// Revoke notifies the token endpoint that the held token should be revoked
// and transitions to the revoked state. The transition happens even if the
// network call fails; the returned error reports the notification failure.
func (a *Authorizer) Revoke(ctx context.Context) error {
	a.mu.Lock()
	token := a.token
	a.token = nil
	a.grant = nil
	a.revoked = true
	a.mu.Unlock()

	if token == nil || token.AccessToken == "" {
		return nil
	}

	form := url.Values{}
	if token.RefreshToken != "" {
		form.Set("token", token.RefreshToken)
		form.Set("token_type_hint", "refresh_token")
	} else {
		form.Set("token", token.AccessToken)
		form.Set("token_type_hint", "access_token")
	}
	a.authenticator.applyForm(form)

	_, err := a.postForm(ctx, a.revokeURL, form)
	if err != nil && a.logger != nil {
		a.logger.Warn("revoke notification failed", "error", err)
	}
	return err
}

// IsAuthorized reports whether a presentable token is currently held.
func (a *Authorizer) IsAuthorized() bool {
	return a.validToken() != nil
}

// Revoked reports whether the Authorizer requires a fresh Authorize call.
func (a *Authorizer) Revoked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revoked
}

// exchange POSTs a grant to the token endpoint and parses the result into a
// Token. It never mutates Authorizer state.
func (a *Authorizer) exchange(ctx context.Context, grant Grant) (*Token, error) {
	form, err := grantForm(grant)
	if err != nil {
		return nil, err
	}
	a.authenticator.applyForm(form)

	resp, err := a.postForm(ctx, a.tokenURL, form)
	if err != nil {
		return nil, err
	}

	var payload tokenEndpointResponse
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(resp.Body, &payload)
		return nil, &OAuthError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   payload.Error,
			Description: payload.ErrorDescription,
			Body:        string(resp.Body),
		}
	}

	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &OAuthError{
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}
	if payload.Error != "" || payload.AccessToken == "" {
		return nil, &OAuthError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   payload.Error,
			Description: payload.ErrorDescription,
			Body:        string(resp.Body),
		}
	}

	var scope []string
	if payload.Scope != "" {
		scope = strings.Fields(payload.Scope)
	}

	return &Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		Scope:        scope,
		ExpiresAt:    time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
		RefreshToken: payload.RefreshToken,
	}, nil
}

func (a *Authorizer) postForm(ctx context.Context, rawURL string, form url.Values) (*RawResponse, error) {
	encoded := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
	if err != nil {
		return nil, &TransportError{Method: http.MethodPost, URL: rawURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	a.authenticator.applyRequest(req)

	return a.requestor.do(req)
}
