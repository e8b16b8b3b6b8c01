package identitytoolkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	itk "google.golang.org/api/identitytoolkit/v3"

	"cloudtodo/internal/auth"
)

const (
	// OAuth callback timeout
	oauthCallbackTimeout = 5 * time.Minute

	// Token exchange timeout
	tokenExchangeTimeout = 30 * time.Second

	// Starting port for OAuth callback server
	oauthStartPort = 8085

	// Max port attempts
	oauthMaxPortAttempts = 5

	googleProviderID = "google.com"
)

var googleScopes = []string{"openid", "email", "profile"}

// SignInWithGoogle runs the loopback authorization code flow with PKCE,
// then exchanges the Google ID token for a Firebase session.
func (p *Provider) SignInWithGoogle(ctx context.Context) (auth.Credentials, error) {
	if p.google == nil {
		return auth.Credentials{}, auth.Errorf(auth.CodeConfig, errors.New("oauth_client.json not found"))
	}
	conf := *p.google

	// Find available port
	port, listener, err := findAvailablePort()
	if err != nil {
		return auth.Credentials{}, auth.Errorf(auth.CodePopupBlocked, err)
	}
	defer listener.Close()

	conf.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
	fmt.Fprintln(p.prompt, "Open this URL in your browser:")
	fmt.Fprintln(p.prompt, authURL)

	code, err := awaitCallback(ctx, listener, state)
	if err != nil {
		return auth.Credentials{}, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()
	token, err := conf.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return auth.Credentials{}, classify(err)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return auth.Credentials{}, auth.Errorf(auth.CodeConfig, errors.New("google did not return an id token"))
	}

	return p.verifyGoogleToken(ctx, idToken, conf.RedirectURL)
}

// verifyGoogleToken signs in to Firebase with a Google ID token.
func (p *Provider) verifyGoogleToken(ctx context.Context, idToken, requestURI string) (auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body := url.Values{}
	body.Set("id_token", idToken)
	body.Set("providerId", googleProviderID)

	resp, err := p.svc.Relyingparty.VerifyAssertion(&itk.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          body.Encode(),
		RequestUri:        requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return auth.Credentials{}, classify(err)
	}
	if resp.ErrorMessage != "" {
		return auth.Credentials{}, classify(errors.New(resp.ErrorMessage))
	}
	p.log.WithField("user", resp.LocalId).Info("signed in with google")
	return credentials(resp.LocalId, resp.Email, resp.DisplayName, resp.PhotoUrl, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

// awaitCallback serves the redirect on listener and returns the
// authorization code.
func awaitCallback(ctx context.Context, listener net.Listener, state string) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Sign-in was not completed", http.StatusBadRequest)
			fail(auth.Errorf(auth.CodePopupClosed, fmt.Errorf("authorization failed: %s", e)))
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			fail(auth.Errorf(auth.CodeCancelled, errors.New("state mismatch in callback")))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			fail(auth.Errorf(auth.CodeCancelled, errors.New("no code in callback")))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fail(err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-time.After(oauthCallbackTimeout):
		return "", auth.Errorf(auth.CodePopupClosed, errors.New("oauth callback timed out"))
	case <-ctx.Done():
		return "", auth.Errorf(auth.CodeCancelled, ctx.Err())
	}
}

// findAvailablePort tries to find an available port starting from oauthStartPort.
func findAvailablePort() (int, net.Listener, error) {
	for i := 0; i < oauthMaxPortAttempts; i++ {
		port := oauthStartPort + i
		addr := fmt.Sprintf("localhost:%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return port, listener, nil
		}
	}
	return 0, nil, fmt.Errorf("no available port found")
}
