// Package grawcore is the low-level communication layer for Reddit API
// clients. It handles OAuth2 token acquisition and refresh, server-driven
// rate limiting, and retry-aware request dispatch, and exposes raw JSON
// responses. It deliberately does not model Reddit's domain objects; that
// belongs to a higher-level library built on top of this one.
//
// Basic usage:
//
//	authenticator := grawcore.NewTrustedAuthenticator(clientID, clientSecret)
//	requestor, err := grawcore.NewRequestor(nil, "web:myapp:1.0 by /u/me", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	authorizer, err := grawcore.NewAuthorizer(&grawcore.AuthorizerConfig{
//		Authenticator: authenticator,
//		Requestor:     requestor,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := authorizer.Authorize(ctx, grawcore.ClientCredentialsGrant{}); err != nil {
//		log.Fatal(err)
//	}
//
//	session, err := grawcore.NewSession(&grawcore.SessionConfig{Authorizer: authorizer})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	body, err := session.Get(ctx, "api/v1/me", nil)
package grawcore
