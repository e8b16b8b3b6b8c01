package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/service"
)

// minPasswordLength matches the hosted provider's weak-password rule.
const minPasswordLength = 6

// Accounts implements auth.Provider with email/password accounts stored in
// the local database. Tokens never expire; federated sign-in is not
// available.
type Accounts struct {
	s *Store
}

// NewAccounts returns the account provider backed by s.
func NewAccounts(s *Store) *Accounts {
	return &Accounts{s: s}
}

// SignUp creates an account.
func (a *Accounts) SignUp(ctx context.Context, email, password string) (auth.Credentials, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return auth.Credentials{}, auth.Errorf(auth.CodeInvalidEmail, err)
	}
	if len(password) < minPasswordLength {
		return auth.Credentials{}, auth.Errorf(auth.CodeWeakPassword, fmt.Errorf("password shorter than %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return auth.Credentials{}, err
	}

	uid := uuid.NewString()
	refresh := uuid.NewString()
	res, err := a.s.db.ExecContext(ctx, `INSERT INTO users (uid, email, password_hash, refresh_token, created_at)
VALUES (?, ?, ?, ?, ?) ON CONFLICT(email) DO NOTHING;`,
		uid, email, string(hash), refresh, formatTime(a.s.now()))
	if err != nil {
		return auth.Credentials{}, wrapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.Credentials{}, auth.Errorf(auth.CodeEmailInUse, fmt.Errorf("account exists: %s", email))
	}
	a.s.log.WithField("user", uid).Info("account created")
	return issue(service.User{UID: uid, Email: email}, refresh), nil
}

// SignIn checks email and password.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (auth.Credentials, error) {
	email = normalizeEmail(email)
	var u service.User
	var hash, refresh string
	err := a.s.db.QueryRowContext(ctx, `SELECT uid, email, display_name, password_hash, refresh_token FROM users WHERE email = ?;`, email).
		Scan(&u.UID, &u.Email, &u.DisplayName, &hash, &refresh)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Credentials{}, auth.Errorf(auth.CodeWrongCredentials, errors.New("unknown email"))
	}
	if err != nil {
		return auth.Credentials{}, wrapError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return auth.Credentials{}, auth.Errorf(auth.CodeWrongCredentials, err)
	}
	return issue(u, refresh), nil
}

// SignInWithGoogle is not available locally.
func (a *Accounts) SignInWithGoogle(ctx context.Context) (auth.Credentials, error) {
	return auth.Credentials{}, auth.Errorf(auth.CodeConfig, errors.New("google sign-in requires the firestore backend"))
}

// UpdateProfile sets the display name.
func (a *Accounts) UpdateProfile(ctx context.Context, cred auth.Credentials, displayName string) (auth.Credentials, error) {
	res, err := a.s.db.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE uid = ?;`, displayName, cred.User.UID)
	if err != nil {
		return auth.Credentials{}, wrapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.Credentials{}, auth.Errorf(auth.CodeSessionExpired, errors.New("account no longer exists"))
	}
	cred.User.DisplayName = displayName
	return cred, nil
}

// Refresh reissues the ID token when the refresh token still matches the
// account.
func (a *Accounts) Refresh(ctx context.Context, cred auth.Credentials) (auth.Credentials, error) {
	var u service.User
	var refresh string
	err := a.s.db.QueryRowContext(ctx, `SELECT uid, email, display_name, refresh_token FROM users WHERE uid = ?;`, cred.User.UID).
		Scan(&u.UID, &u.Email, &u.DisplayName, &refresh)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Credentials{}, auth.Errorf(auth.CodeSessionExpired, errors.New("account no longer exists"))
	}
	if err != nil {
		return auth.Credentials{}, wrapError(err)
	}
	if refresh != cred.RefreshToken {
		return auth.Credentials{}, auth.Errorf(auth.CodeSessionExpired, errors.New("refresh token revoked"))
	}
	return issue(u, refresh), nil
}

func issue(u service.User, refresh string) auth.Credentials {
	return auth.Credentials{
		User:         u,
		IDToken:      uuid.NewString(),
		RefreshToken: refresh,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
