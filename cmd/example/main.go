// Command example authenticates against Reddit with credentials from the
// environment (or a .env file) and fetches the authenticated identity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/jamesprial/grawcore"
)

func main() {
	// A missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	clientID := os.Getenv("REDDIT_CLIENT_ID")
	clientSecret := os.Getenv("REDDIT_CLIENT_SECRET")
	username := os.Getenv("REDDIT_USERNAME")
	password := os.Getenv("REDDIT_PASSWORD")

	if clientID == "" || clientSecret == "" {
		log.Fatal("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET environment variables are required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	requestor, err := grawcore.NewRequestor(nil, "script:grawcore-example:1.0 (by /u/yourusername)", logger)
	if err != nil {
		log.Fatalf("Failed to create requestor: %v", err)
	}

	authorizer, err := grawcore.NewAuthorizer(&grawcore.AuthorizerConfig{
		Authenticator: grawcore.NewTrustedAuthenticator(clientID, clientSecret),
		Requestor:     requestor,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to create authorizer: %v", err)
	}

	ctx := context.Background()

	// Password grant when user credentials are present, app-only otherwise.
	var grant grawcore.Grant = grawcore.ClientCredentialsGrant{}
	if username != "" && password != "" {
		grant = grawcore.PasswordGrant{Username: username, Password: password}
	}
	if err := authorizer.Authorize(ctx, grant); err != nil {
		log.Fatalf("Failed to authorize: %v", err)
	}
	fmt.Println("Successfully authorized!")

	session, err := grawcore.NewSession(&grawcore.SessionConfig{
		Authorizer: authorizer,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	body, err := session.Get(ctx, "api/v1/me", nil)
	if err != nil {
		log.Fatalf("Failed to fetch identity: %v", err)
	}

	var me struct {
		Name    string  `json:"name"`
		Created float64 `json:"created_utc"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		log.Fatalf("Failed to decode identity: %v", err)
	}
	if me.Name != "" {
		fmt.Printf("Authenticated as: %s\n", me.Name)
	} else {
		fmt.Printf("Authenticated (app-only); response was %d bytes\n", len(body))
	}

	if err := authorizer.Revoke(ctx); err != nil {
		log.Printf("Revoke notification failed: %v", err)
	}
}
