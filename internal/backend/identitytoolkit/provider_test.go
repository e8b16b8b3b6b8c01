package identitytoolkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/googleapi"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"EMAIL_EXISTS", auth.CodeEmailInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", auth.CodeWeakPassword},
		{"INVALID_EMAIL", auth.CodeInvalidEmail},
		{"EMAIL_NOT_FOUND", auth.CodeWrongCredentials},
		{"INVALID_PASSWORD", auth.CodeWrongCredentials},
		{"INVALID_LOGIN_CREDENTIALS", auth.CodeWrongCredentials},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", auth.CodeTooManyRequests},
		{"CONFIGURATION_NOT_FOUND", auth.CodeConfig},
		{"OPERATION_NOT_ALLOWED", auth.CodeOperationNotAllowed},
		{"API key not valid. Please pass a valid API key.", auth.CodeInvalidAPIKey},
		{"TOKEN_EXPIRED", auth.CodeSessionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := classify(&googleapi.Error{Code: 400, Message: tt.msg})
			if service.KindOf(err) != service.KindAuth {
				t.Errorf("expected auth kind, got %v", service.KindOf(err))
			}
			if got := service.CodeOf(err); got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_Unknown(t *testing.T) {
	err := classify(errors.New("something odd"))
	if service.CodeOf(err) != "" {
		t.Errorf("expected no code, got %q", service.CodeOf(err))
	}
	if auth.Message(err) != "something odd" {
		t.Errorf("expected raw message, got %q", auth.Message(err))
	}
	if classify(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestClassify_Network(t *testing.T) {
	err := classify(context.DeadlineExceeded)
	if service.CodeOf(err) != auth.CodeNetwork {
		t.Errorf("expected network code, got %q", service.CodeOf(err))
	}
}

func newTestProvider(t *testing.T, api, token http.HandlerFunc) *Provider {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	tokenURL := ""
	if token != nil {
		tokenSrv := httptest.NewServer(token)
		t.Cleanup(tokenSrv.Close)
		tokenURL = tokenSrv.URL + "/v1/token"
	}
	p, err := NewWithHTTPClient(context.Background(), apiSrv.Client(), apiSrv.URL+"/", tokenURL, "test-key")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProvider_SignIn(t *testing.T) {
	var req map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/verifyPassword") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"localId":"u1","email":"a@example.com","displayName":"Alice","idToken":"id1","refreshToken":"r1","expiresIn":"3600"}`)
	}, nil)

	cred, err := p.SignIn(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req["returnSecureToken"] != true {
		t.Errorf("expected returnSecureToken in request, got %v", req)
	}
	if cred.User.UID != "u1" || cred.User.DisplayName != "Alice" || cred.IDToken != "id1" || cred.RefreshToken != "r1" {
		t.Errorf("unexpected credentials %+v", cred)
	}
	if until := time.Until(cred.Expiry); until < 59*time.Minute || until > time.Hour {
		t.Errorf("unexpected expiry in %v", until)
	}
}

func TestProvider_SignInWrongPassword(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS","errors":[{"message":"INVALID_LOGIN_CREDENTIALS","domain":"global","reason":"invalid"}]}}`)
	}, nil)

	_, err := p.SignIn(context.Background(), "a@example.com", "nope")
	if service.CodeOf(err) != auth.CodeWrongCredentials {
		t.Errorf("expected wrong-credentials, got %v", err)
	}
}

func TestProvider_UpdateProfileKeepsRefreshToken(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"localId":"u1","displayName":"Bob","idToken":"id2"}`)
	}, nil)

	cred := auth.Credentials{
		User:         service.User{UID: "u1", Email: "b@example.com"},
		IDToken:      "id1",
		RefreshToken: "r1",
	}
	updated, err := p.UpdateProfile(context.Background(), cred, "Bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.User.DisplayName != "Bob" || updated.IDToken != "id2" || updated.RefreshToken != "r1" {
		t.Errorf("unexpected credentials %+v", updated)
	}
	if updated.User.Email != "b@example.com" {
		t.Errorf("email should be kept, got %q", updated.User.Email)
	}
}

func TestProvider_Refresh(t *testing.T) {
	var form, key string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("identity toolkit should not be called")
	}, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = r.PostForm.Get("grant_type") + " " + r.PostForm.Get("refresh_token")
		key = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"at2","id_token":"id2","refresh_token":"r2","expires_in":"3600","token_type":"Bearer","user_id":"u1"}`)
	})

	fresh, err := p.Refresh(context.Background(), auth.Credentials{
		User:         service.User{UID: "u1"},
		IDToken:      "id1",
		RefreshToken: "r1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if form != "refresh_token r1" {
		t.Errorf("unexpected form %q", form)
	}
	if key != "test-key" {
		t.Errorf("expected api key in query, got %q", key)
	}
	if fresh.IDToken != "id2" || fresh.RefreshToken != "r2" || fresh.User.UID != "u1" {
		t.Errorf("unexpected credentials %+v", fresh)
	}
	if !fresh.Expiry.After(time.Now()) {
		t.Error("expected future expiry")
	}
}

func TestProvider_RefreshRejected(t *testing.T) {
	p := newTestProvider(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"TOKEN_EXPIRED","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := p.Refresh(context.Background(), auth.Credentials{RefreshToken: "r1"})
	if service.CodeOf(err) != auth.CodeSessionExpired {
		t.Errorf("expected session-expired, got %v", err)
	}
}

func TestProvider_RefreshWithoutToken(t *testing.T) {
	p := newTestProvider(t, nil, nil)
	_, err := p.Refresh(context.Background(), auth.Credentials{})
	if service.CodeOf(err) != auth.CodeSessionExpired {
		t.Errorf("expected session-expired, got %v", err)
	}
}

func TestProvider_GoogleWithoutClientFile(t *testing.T) {
	p := newTestProvider(t, nil, nil)
	_, err := p.SignInWithGoogle(context.Background())
	if service.CodeOf(err) != auth.CodeConfig {
		t.Errorf("expected configuration error, got %v", err)
	}
	if auth.GoogleMessage(err) != "Google 登錄未正確配置，請使用電子郵件登錄" {
		t.Errorf("unexpected message %q", auth.GoogleMessage(err))
	}
}
