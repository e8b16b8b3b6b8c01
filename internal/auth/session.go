// Package auth wraps the hosted auth provider behind an observable session.
//
// A Session is created once per process and passed explicitly to the task
// store and commands; there is no package-level current user.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"cloudtodo/internal/logging"
	"cloudtodo/internal/service"
)

// refreshLeeway renews tokens slightly before they expire.
const refreshLeeway = time.Minute

// tokenTimeout bounds a refresh issued from Token, which has no context.
const tokenTimeout = 30 * time.Second

// Credentials is a signed-in identity and its tokens.
type Credentials struct {
	User         service.User `json:"user"`
	IDToken      string       `json:"id_token"`
	RefreshToken string       `json:"refresh_token"`
	Expiry       time.Time    `json:"expiry"`
}

// Provider is the hosted identity service.
type Provider interface {
	// SignUp creates an email/password account.
	SignUp(ctx context.Context, email, password string) (Credentials, error)

	// SignIn signs in with email and password.
	SignIn(ctx context.Context, email, password string) (Credentials, error)

	// SignInWithGoogle runs the federated Google sign-in flow.
	SignInWithGoogle(ctx context.Context) (Credentials, error)

	// UpdateProfile sets the display name of the signed-in account.
	UpdateProfile(ctx context.Context, cred Credentials, displayName string) (Credentials, error)

	// Refresh exchanges the refresh token for a new ID token.
	Refresh(ctx context.Context, cred Credentials) (Credentials, error)
}

// State is a snapshot of the session.
type State struct {
	User    *service.User
	Loading bool
	Err     string
}

// Session tracks the current user and the last auth error.
type Session struct {
	provider Provider
	store    Persister
	log      *logrus.Logger

	mu      sync.RWMutex
	cred    *Credentials
	loading bool
	errMsg  string

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewSession returns a session that reports Loading until Resume runs.
func NewSession(p Provider, store Persister, log *logrus.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	return &Session{
		provider: p,
		store:    store,
		log:      log,
		loading:  true,
		subs:     make(map[int]func(State)),
	}
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *service.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil
	}
	u := s.cred.User
	return &u
}

// UserID returns the signed-in user's id, or "".
func (s *Session) UserID() string {
	if u := s.CurrentUser(); u != nil {
		return u.UID
	}
	return ""
}

// Loading reports whether the initial state is still unknown.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the message of the last auth failure, or "".
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{Loading: s.loading, Err: s.errMsg}
	if s.cred != nil {
		u := s.cred.User
		st.User = &u
	}
	return st
}

// Subscribe registers fn to receive every state change. The returned
// function removes the subscription.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify() {
	st := s.State()
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// set replaces the credentials and error, ends loading, and notifies.
func (s *Session) set(cred *Credentials, errMsg string) {
	s.mu.Lock()
	s.cred = cred
	s.errMsg = errMsg
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// fail records err as the session error, keeping the current user.
func (s *Session) fail(err error, msg string) error {
	s.mu.Lock()
	s.errMsg = msg
	s.loading = false
	s.mu.Unlock()
	s.notify()
	return err
}

// Resume restores a persisted session, refreshing its token when expired.
// It always ends the loading state.
func (s *Session) Resume(ctx context.Context) error {
	cred, err := s.store.Load()
	if err != nil {
		s.log.WithError(err).Warn("discarding unreadable session")
		_ = s.store.Clear()
		s.set(nil, "")
		return nil
	}
	if cred == nil {
		s.set(nil, "")
		return nil
	}
	if !cred.Expiry.IsZero() && time.Now().Add(refreshLeeway).After(cred.Expiry) {
		fresh, err := s.provider.Refresh(ctx, *cred)
		if err != nil {
			s.log.WithError(err).WithField("user", cred.User.UID).Warn("session refresh failed")
			if service.KindOf(err) == service.KindAuth && service.CodeOf(err) != CodeNetwork {
				_ = s.store.Clear()
			}
			s.set(nil, Message(err))
			return err
		}
		cred = &fresh
		if err := s.store.Save(fresh); err != nil {
			s.log.WithError(err).Warn("failed to persist refreshed session")
		}
	}
	s.log.WithField("user", cred.User.UID).Debug("session resumed")
	s.set(cred, "")
	return nil
}

// accept stores a freshly issued credential as the current session.
func (s *Session) accept(cred Credentials) error {
	if err := s.store.Save(cred); err != nil {
		return s.fail(service.Wrap(service.KindUnknown, err), err.Error())
	}
	s.set(&cred, "")
	s.log.WithField("user", cred.User.UID).Info("signed in")
	return nil
}

// SignInWithGoogle signs in through the federated Google flow.
func (s *Session) SignInWithGoogle(ctx context.Context) (*service.User, error) {
	cred, err := s.provider.SignInWithGoogle(ctx)
	if err != nil {
		return nil, s.fail(err, GoogleMessage(err))
	}
	if err := s.accept(cred); err != nil {
		return nil, err
	}
	return s.CurrentUser(), nil
}

// RegisterWithEmail creates an account and signs in as it.
func (s *Session) RegisterWithEmail(ctx context.Context, email, password, displayName string) (*service.User, error) {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)
	if email == "" || password == "" {
		err := validation(MsgRequiredFields)
		return nil, s.fail(err, MsgRequiredFields)
	}
	if displayName == "" {
		err := validation(MsgDisplayName)
		return nil, s.fail(err, MsgDisplayName)
	}

	cred, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, s.fail(err, Message(err))
	}
	updated, err := s.provider.UpdateProfile(ctx, cred, displayName)
	if err != nil {
		// The account exists; keep it signed in without the display name.
		s.log.WithError(err).WithField("user", cred.User.UID).Warn("failed to set display name")
	} else {
		cred = updated
	}
	if err := s.accept(cred); err != nil {
		return nil, err
	}
	return s.CurrentUser(), nil
}

// LoginWithEmail signs in with email and password.
func (s *Session) LoginWithEmail(ctx context.Context, email, password string) (*service.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := validation(MsgRequiredFields)
		return nil, s.fail(err, MsgRequiredFields)
	}
	cred, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.fail(err, Message(err))
	}
	if err := s.accept(cred); err != nil {
		return nil, err
	}
	return s.CurrentUser(), nil
}

// SignOut forgets the current session.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.store.Clear(); err != nil {
		wrapped := service.Wrap(service.KindUnknown, err)
		return s.fail(wrapped, err.Error())
	}
	uid := s.UserID()
	s.set(nil, "")
	if uid != "" {
		s.log.WithField("user", uid).Info("signed out")
	}
	return nil
}

// ClearError dismisses the last auth error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// IDToken returns a valid ID token for the current user.
func (s *Session) IDToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := s.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Token implements oauth2.TokenSource with the session's ID token,
// refreshing and persisting it when it is about to expire.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()
	if cred == nil {
		return nil, service.ErrNotSignedIn
	}
	if cred.Expiry.IsZero() || time.Now().Add(refreshLeeway).Before(cred.Expiry) {
		return &oauth2.Token{AccessToken: cred.IDToken, TokenType: "Bearer", Expiry: cred.Expiry}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), tokenTimeout)
	defer cancel()
	fresh, err := s.provider.Refresh(ctx, *cred)
	if err != nil {
		return nil, s.fail(err, Message(err))
	}
	if err := s.store.Save(fresh); err != nil {
		s.log.WithError(err).Warn("failed to persist refreshed session")
	}
	s.mu.Lock()
	s.cred = &fresh
	s.mu.Unlock()
	return &oauth2.Token{AccessToken: fresh.IDToken, TokenType: "Bearer", Expiry: fresh.Expiry}, nil
}
