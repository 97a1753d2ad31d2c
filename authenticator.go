package grawcore

import (
	"net/http"
	"net/url"
)

// Authenticator holds the OAuth2 client identity and determines how the
// token endpoint request is authenticated. It is immutable and carries no
// transport logic.
//
// A trusted (confidential) authenticator holds a client secret and
// authenticates with HTTP Basic, suitable for server-side apps. An
// untrusted (public) authenticator holds only the client id, which is sent
// as a form field instead, suitable for installed and mobile apps.
type Authenticator struct {
	clientID     string
	clientSecret string
	trusted      bool
}

// NewTrustedAuthenticator returns the identity of a confidential client.
func NewTrustedAuthenticator(clientID, clientSecret string) *Authenticator {
	return &Authenticator{clientID: clientID, clientSecret: clientSecret, trusted: true}
}

// NewUntrustedAuthenticator returns the identity of a public client.
func NewUntrustedAuthenticator(clientID string) *Authenticator {
	return &Authenticator{clientID: clientID}
}

// ClientID returns the OAuth2 client identifier.
func (a *Authenticator) ClientID() string { return a.clientID }

// Trusted reports whether this client can hold a secret.
func (a *Authenticator) Trusted() bool { return a.trusted }

// applyForm contributes identity fields to the token-endpoint form body.
// Must run before the form is encoded into the request.
func (a *Authenticator) applyForm(form url.Values) {
	if !a.trusted {
		form.Set("client_id", a.clientID)
	}
}

// applyRequest attaches request-level credentials to a token-endpoint call.
func (a *Authenticator) applyRequest(req *http.Request) {
	if a.trusted {
		req.SetBasicAuth(a.clientID, a.clientSecret)
	}
}
