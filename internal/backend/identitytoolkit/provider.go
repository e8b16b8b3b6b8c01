// Package identitytoolkit implements auth.Provider using the Firebase
// Authentication (Identity Toolkit) REST API.
package identitytoolkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	itk "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/config"
	"cloudtodo/internal/logging"
	"cloudtodo/internal/service"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	// SecureTokenURL exchanges refresh tokens for ID tokens.
	SecureTokenURL = "https://securetoken.googleapis.com/v1/token"

	// defaultTokenLifetime applies when a response omits expiresIn.
	defaultTokenLifetime = time.Hour
)

// Provider implements auth.Provider.
type Provider struct {
	svc     *itk.Service
	refresh *oauth2.Config
	client  *http.Client
	google  *oauth2.Config // nil without oauth_client.json
	prompt  io.Writer
	log     *logrus.Logger
}

// New creates a provider for the project configured in cfg. Prompts for the
// Google sign-in flow are written to prompt.
func New(ctx context.Context, cfg *config.Config, prompt io.Writer, log *logrus.Logger) (*Provider, error) {
	key := cfg.Settings.Firebase.APIKey
	if key == "" {
		return nil, auth.Errorf(auth.CodeNotInitialized, fmt.Errorf("firebase api_key not set in %s", cfg.SettingsPath()))
	}

	svc, err := itk.NewService(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit service: %w", err)
	}

	p := &Provider{
		svc:     svc,
		refresh: refreshConfig(SecureTokenURL, key),
		client:  http.DefaultClient,
		prompt:  prompt,
		log:     logging.Discard(),
	}
	if log != nil {
		p.log = log
	}

	// Google sign-in is optional; without a client file it reports a
	// configuration error when used.
	if cfg.HasOAuthClient() {
		clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
		}
		p.google, err = google.ConfigFromJSON(clientJSON, googleScopes...)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
		}
	}
	return p, nil
}

// NewWithHTTPClient creates a provider against custom endpoints (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint, tokenURL, apiKey string) (*Provider, error) {
	svc, err := itk.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, err
	}
	return &Provider{
		svc:     svc,
		refresh: refreshConfig(tokenURL, apiKey),
		client:  httpClient,
		prompt:  io.Discard,
		log:     logging.Discard(),
	}, nil
}

// refreshConfig builds the OAuth2 config that posts refresh tokens to the
// secure token endpoint.
func refreshConfig(tokenURL, apiKey string) *oauth2.Config {
	return &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL + "?key=" + apiKey,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// SignUp creates an email/password account.
func (p *Provider) SignUp(ctx context.Context, email, password string) (auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := p.svc.Relyingparty.SignupNewUser(&itk.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return auth.Credentials{}, classify(err)
	}
	p.log.WithField("user", resp.LocalId).Info("account created")
	return credentials(resp.LocalId, resp.Email, resp.DisplayName, "", resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

// SignIn signs in with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := p.svc.Relyingparty.VerifyPassword(&itk.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return auth.Credentials{}, classify(err)
	}
	return credentials(resp.LocalId, resp.Email, resp.DisplayName, resp.PhotoUrl, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

// UpdateProfile sets the display name of the account behind cred.
func (p *Provider) UpdateProfile(ctx context.Context, cred auth.Credentials, displayName string) (auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := p.svc.Relyingparty.SetAccountInfo(&itk.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:           cred.IDToken,
		DisplayName:       displayName,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return auth.Credentials{}, classify(err)
	}

	updated := cred
	updated.User.DisplayName = resp.DisplayName
	if resp.IdToken != "" {
		fresh := credentials(cred.User.UID, cred.User.Email, resp.DisplayName, cred.User.PhotoURL, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = cred.RefreshToken
		}
		updated = fresh
	}
	return updated, nil
}

// Refresh exchanges the refresh token for a new ID token.
func (p *Provider) Refresh(ctx context.Context, cred auth.Credentials) (auth.Credentials, error) {
	if cred.RefreshToken == "" {
		return auth.Credentials{}, auth.Errorf(auth.CodeSessionExpired, fmt.Errorf("no refresh token"))
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	// An expired token forces the source to refresh.
	ts := p.refresh.TokenSource(ctx, &oauth2.Token{
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := ts.Token()
	if err != nil {
		return auth.Credentials{}, classify(err)
	}

	fresh := cred
	fresh.IDToken = tok.AccessToken
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		fresh.IDToken = id
	}
	if tok.RefreshToken != "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	fresh.Expiry = tok.Expiry
	if fresh.Expiry.IsZero() {
		fresh.Expiry = time.Now().Add(defaultTokenLifetime)
	}
	p.log.WithField("user", cred.User.UID).Debug("token refreshed")
	return fresh, nil
}

// credentials assembles a session from a REST response.
func credentials(uid, email, name, photo, idToken, refreshToken string, expiresIn int64) auth.Credentials {
	lifetime := time.Duration(expiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	return auth.Credentials{
		User: service.User{
			UID:         uid,
			DisplayName: name,
			Email:       email,
			PhotoURL:    photo,
		},
		IDToken:      idToken,
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(lifetime),
	}
}
