package grawcore

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// installedClientGrantType is Reddit's extension grant for app-only flows
// from installed (public) apps that identify a device rather than a user.
const installedClientGrantType = "https://oauth.reddit.com/grants/installed_client"

// Grant describes how an access token is obtained from the token endpoint.
// It is a closed set of variants; the exchange logic switches over them
// exhaustively so a new grant is a compile-time-checked addition.
type Grant interface {
	isGrant()
}

// AuthorizationCodeGrant trades a user-delegated authorization code for a
// token. The RedirectURI must match the one used during authorization.
// Tokens from this grant carry a refresh token.
type AuthorizationCodeGrant struct {
	Code        string
	RedirectURI string
}

// RefreshTokenGrant trades a refresh token for a new access token.
type RefreshTokenGrant struct {
	RefreshToken string
}

// PasswordGrant is the legacy resource-owner flow for script apps. If the
// account uses two-factor auth, supply the current code in TwoFactorCode.
type PasswordGrant struct {
	Username      string
	Password      string
	TwoFactorCode string
}

// ClientCredentialsGrant obtains an application-only, read-only token.
// No refresh token is issued; expiry is handled by re-running the grant.
type ClientCredentialsGrant struct{}

// DeviceIDGrant obtains an application-only token for installed (public)
// apps. A unique per-installation DeviceID should be supplied; when empty,
// a random one is generated for the exchange.
type DeviceIDGrant struct {
	DeviceID string
}

// ImplicitGrant wraps a token that was obtained out-of-band via the OAuth2
// implicit flow. No exchange is performed and no refresh is possible.
type ImplicitGrant struct {
	AccessToken string
	ExpiresIn   time.Duration
	Scope       []string
}

func (AuthorizationCodeGrant) isGrant() {}
func (RefreshTokenGrant) isGrant()      {}
func (PasswordGrant) isGrant()          {}
func (ClientCredentialsGrant) isGrant() {}
func (DeviceIDGrant) isGrant()          {}
func (ImplicitGrant) isGrant()          {}

// grantForm maps a grant variant to the form body POSTed to the token
// endpoint. ImplicitGrant has no exchange and returns an error.
func grantForm(g Grant) (url.Values, error) {
	form := url.Values{}
	switch grant := g.(type) {
	case AuthorizationCodeGrant:
		form.Set("grant_type", "authorization_code")
		form.Set("code", grant.Code)
		form.Set("redirect_uri", grant.RedirectURI)
	case RefreshTokenGrant:
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", grant.RefreshToken)
	case PasswordGrant:
		form.Set("grant_type", "password")
		form.Set("username", grant.Username)
		password := grant.Password
		if grant.TwoFactorCode != "" {
			// Reddit accepts the OTP appended to the password.
			password = password + ":" + grant.TwoFactorCode
		}
		form.Set("password", password)
	case ClientCredentialsGrant:
		form.Set("grant_type", "client_credentials")
	case DeviceIDGrant:
		deviceID := grant.DeviceID
		if deviceID == "" {
			deviceID = uuid.NewString()
		}
		form.Set("grant_type", installedClientGrantType)
		form.Set("device_id", deviceID)
	case ImplicitGrant:
		return nil, &ConfigError{Field: "Grant", Message: "implicit grant has no token-endpoint exchange"}
	default:
		return nil, &ConfigError{Field: "Grant", Message: "unknown grant variant"}
	}
	return form, nil
}

// grantName returns the wire grant_type for diagnostics.
func grantName(g Grant) string {
	switch g.(type) {
	case AuthorizationCodeGrant:
		return "authorization_code"
	case RefreshTokenGrant:
		return "refresh_token"
	case PasswordGrant:
		return "password"
	case ClientCredentialsGrant:
		return "client_credentials"
	case DeviceIDGrant:
		return installedClientGrantType
	case ImplicitGrant:
		return "implicit"
	default:
		return "unknown"
	}
}

// reauthorizable reports whether expiry can be handled by re-running the
// same grant when no refresh token is held. Application-only grants never
// receive one; script-app password tokens frequently omit it too.
func reauthorizable(g Grant) bool {
	switch g.(type) {
	case ClientCredentialsGrant, DeviceIDGrant, PasswordGrant:
		return true
	default:
		return false
	}
}
