// Package auth verifies Firebase ID tokens and resolves them to identities.
package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/memora-app/memora/pkg/config"
)

// Identity is the authenticated principal extracted from a bearer token.
type Identity struct {
	UID   string
	Email string
}

// Verifier validates a bearer token and returns the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// NewFirebaseApp initializes the Firebase SDK. CredentialsJSON may be an
// inline service-account document or a path to one.
func NewFirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		if strings.HasPrefix(creds, "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
		} else {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

// FirebaseVerifier validates Firebase ID tokens against the project.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier creates a verifier from an initialized Firebase app.
func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify validates the ID token signature and expiry.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid id token: %w", err)
	}

	email, _ := decoded.Claims["email"].(string)
	return &Identity{UID: decoded.UID, Email: email}, nil
}

// DevVerifier accepts any non-empty bearer token and treats it as the UID
// directly. Only wired when ENVIRONMENT is not production.
type DevVerifier struct{}

// Verify treats the token as "uid" or "uid:email".
func (DevVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	uid, email, _ := strings.Cut(token, ":")
	return &Identity{UID: uid, Email: email}, nil
}
