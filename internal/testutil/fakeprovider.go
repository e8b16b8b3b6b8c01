package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/service"
)

type fakeAccount struct {
	uid         string
	password    string
	displayName string
}

// FakeProvider is an in-memory auth.Provider for testing.
type FakeProvider struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount // email -> account
	seq      int

	// GoogleUser is returned by SignInWithGoogle when GoogleErr is nil.
	GoogleUser service.User

	// TTL is the lifetime of issued tokens; zero issues non-expiring tokens.
	TTL time.Duration

	// RefreshCalls counts Refresh invocations.
	RefreshCalls int

	// Error injection for testing
	SignUpErr        error
	SignInErr        error
	GoogleErr        error
	UpdateProfileErr error
	RefreshErr       error
}

// NewFakeProvider creates a FakeProvider with no accounts.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		accounts:   make(map[string]*fakeAccount),
		GoogleUser: service.User{UID: "google-uid", DisplayName: "Google User", Email: "g@example.com"},
	}
}

// AddAccount seeds an email/password account and returns its uid.
func (p *FakeProvider) AddAccount(email, password, displayName string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	acct := &fakeAccount{uid: fmt.Sprintf("uid%d", p.seq), password: password, displayName: displayName}
	p.accounts[strings.ToLower(email)] = acct
	return acct.uid
}

func (p *FakeProvider) issue(u service.User) auth.Credentials {
	c := auth.Credentials{
		User:         u,
		IDToken:      "id-" + u.UID,
		RefreshToken: "refresh-" + u.UID,
	}
	if p.TTL > 0 {
		c.Expiry = time.Now().Add(p.TTL)
	}
	return c
}

// SignUp implements auth.Provider.
func (p *FakeProvider) SignUp(ctx context.Context, email, password string) (auth.Credentials, error) {
	if p.SignUpErr != nil {
		return auth.Credentials{}, p.SignUpErr
	}
	if len(password) < 6 {
		return auth.Credentials{}, auth.Errorf(auth.CodeWeakPassword, nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := p.accounts[key]; ok {
		return auth.Credentials{}, auth.Errorf(auth.CodeEmailInUse, nil)
	}
	p.seq++
	acct := &fakeAccount{uid: fmt.Sprintf("uid%d", p.seq), password: password}
	p.accounts[key] = acct
	return p.issue(service.User{UID: acct.uid, Email: email}), nil
}

// SignIn implements auth.Provider.
func (p *FakeProvider) SignIn(ctx context.Context, email, password string) (auth.Credentials, error) {
	if p.SignInErr != nil {
		return auth.Credentials{}, p.SignInErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[strings.ToLower(email)]
	if !ok || acct.password != password {
		return auth.Credentials{}, auth.Errorf(auth.CodeWrongCredentials, nil)
	}
	return p.issue(service.User{UID: acct.uid, Email: email, DisplayName: acct.displayName}), nil
}

// SignInWithGoogle implements auth.Provider.
func (p *FakeProvider) SignInWithGoogle(ctx context.Context) (auth.Credentials, error) {
	if p.GoogleErr != nil {
		return auth.Credentials{}, p.GoogleErr
	}
	return p.issue(p.GoogleUser), nil
}

// UpdateProfile implements auth.Provider.
func (p *FakeProvider) UpdateProfile(ctx context.Context, cred auth.Credentials, displayName string) (auth.Credentials, error) {
	if p.UpdateProfileErr != nil {
		return auth.Credentials{}, p.UpdateProfileErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if acct, ok := p.accounts[strings.ToLower(cred.User.Email)]; ok {
		acct.displayName = displayName
	}
	cred.User.DisplayName = displayName
	return cred, nil
}

// Refresh implements auth.Provider.
func (p *FakeProvider) Refresh(ctx context.Context, cred auth.Credentials) (auth.Credentials, error) {
	p.mu.Lock()
	p.RefreshCalls++
	p.mu.Unlock()
	if p.RefreshErr != nil {
		return auth.Credentials{}, p.RefreshErr
	}
	fresh := p.issue(cred.User)
	fresh.IDToken = cred.IDToken + "-r"
	if fresh.Expiry.IsZero() {
		fresh.Expiry = time.Now().Add(time.Hour)
	}
	return fresh, nil
}
