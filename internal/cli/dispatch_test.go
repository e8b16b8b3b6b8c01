package cli_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/cli"
	"cloudtodo/internal/commands"
	"cloudtodo/internal/config"
	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/service"
	"cloudtodo/internal/testutil"
)

var today = time.Date(2024, time.May, 10, 12, 0, 0, 0, time.Local)

// fakeBackend wires a FakeService and FakeProvider into a factory.
type fakeBackend struct {
	svc      *testutil.FakeService
	provider *testutil.FakeProvider
	err      error
	closed   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{svc: testutil.NewFakeService(), provider: testutil.NewFakeProvider()}
}

func (b *fakeBackend) factory() cli.BackendFactory {
	return func(ctx context.Context, cfg *config.Config, log *logrus.Logger, prompt io.Writer) (*cli.Backend, error) {
		if b.err != nil {
			return nil, b.err
		}
		return &cli.Backend{
			Provider: b.provider,
			Service: func(ctx context.Context, sess *auth.Session) (service.Service, error) {
				return b.svc, nil
			},
			Close: func() error {
				b.closed++
				return nil
			},
		}, nil
	}
}

func (b *fakeBackend) run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, b.factory(), cli.WithClock(func() time.Time { return today }))
	var outBuf, errBuf bytes.Buffer
	code = dispatcher.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// saveSession persists a signed-in session for uid in dir.
func saveSession(t *testing.T, dir string, cred auth.Credentials) {
	t.Helper()
	if err := (auth.FileStore{Path: filepath.Join(dir, config.SessionFile)}).Save(cred); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	b := newFakeBackend()
	_, stderr, code := b.run(t, "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	b := newFakeBackend()
	_, stderr, code := b.run(t, "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	b := newFakeBackend()
	stdout, stderr, code := b.run(t, "help", "--config", t.TempDir())

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !bytes.Contains([]byte(stdout), []byte("Usage:")) {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	b := newFakeBackend()
	b.err = errors.New("backend must not be created")
	stdout, stderr, code := b.run(t, "version", "--config", t.TempDir())

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "cloudtodo 0.1.0\n" {
		t.Errorf("expected 'cloudtodo 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	b := newFakeBackend()
	_, stderr, code := b.run(t, "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagNeedsArgument(t *testing.T) {
	b := newFakeBackend()
	_, stderr, code := b.run(t, "calendar", "--month")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: flag needs an argument: -month\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_NoArgsNotLoggedIn(t *testing.T) {
	b := newFakeBackend()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, stderr, code := b.run(t)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: todo login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if b.closed != 1 {
		t.Errorf("expected the backend to be closed once, got %d", b.closed)
	}
}

func TestDispatcher_NoArgsListsTasks(t *testing.T) {
	b := newFakeBackend()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	saveSession(t, filepath.Join(xdg, config.AppName), auth.Credentials{
		User:    service.User{UID: "u1", DisplayName: "Alice"},
		IDToken: "id",
	})
	b.svc.AddTask("u1", "Buy milk", false)
	b.svc.AddTask("u2", "Not mine", false)

	stdout, stderr, code := b.run(t)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "   1  [ ] Buy milk  #工作\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if b.closed != 1 {
		t.Errorf("expected the backend to be closed once, got %d", b.closed)
	}
}

func TestDispatcher_SettingsFromConfigFile(t *testing.T) {
	b := newFakeBackend()
	dir := t.TempDir()
	saveSession(t, dir, auth.Credentials{User: service.User{UID: "u1"}, IDToken: "id"})
	settings := "default_filter = \"completed\"\n"
	if err := os.WriteFile(filepath.Join(dir, config.SettingsFile), []byte(settings), 0600); err != nil {
		t.Fatal(err)
	}
	b.svc.AddTask("u1", "Open", false)
	b.svc.AddTask("u1", "Closed", true)

	stdout, _, code := b.run(t, "list", "--config", dir)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "   1  [x] Closed  #工作\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestDispatcher_InvalidConfigFile(t *testing.T) {
	b := newFakeBackend()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.SettingsFile), []byte("backend = \n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := b.run(t, "version", "--config", dir)
	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !bytes.Contains([]byte(stderr), []byte("invalid config.toml")) {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_ExpiredSession(t *testing.T) {
	b := newFakeBackend()
	b.provider.RefreshErr = auth.Errorf(auth.CodeSessionExpired, nil)
	dir := t.TempDir()
	saveSession(t, dir, auth.Credentials{
		User:         service.User{UID: "u1"},
		IDToken:      "id",
		RefreshToken: "r",
		Expiry:       time.Now().Add(-time.Hour),
	})

	_, stderr, code := b.run(t, "list", "--config", dir)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.HasSuffix(stderr, "error: 登入已過期，請重新登入 (run: todo login)\n") {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, config.SessionFile)); !os.IsNotExist(err) {
		t.Error("expired session should be cleared")
	}
}

func TestDispatcher_FactoryError(t *testing.T) {
	b := newFakeBackend()
	b.err = auth.Errorf(auth.CodeNotInitialized, errors.New("api_key missing"))

	_, stderr, code := b.run(t, "login", "--config", t.TempDir())

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: auth error: Firebase 認證服務未初始化，請聯系管理員\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_LoginThenWhoami(t *testing.T) {
	b := newFakeBackend()
	dir := t.TempDir()

	stdout, _, code := b.run(t, "login", "--config", dir)
	if code != exitcode.Success || stdout != "logged in as Google User\n" {
		t.Fatalf("login failed: %d %q", code, stdout)
	}

	stdout, _, code = b.run(t, "whoami", "--config", dir)
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "Google User\nemail  g@example.com\nuid    google-uid\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestDispatcher_AddThenList(t *testing.T) {
	b := newFakeBackend()
	dir := t.TempDir()
	saveSession(t, dir, auth.Credentials{User: service.User{UID: "u1"}, IDToken: "id"})

	stdout, _, code := b.run(t, "add", "--config", dir, "--due", "2024-05-11", "-c", "健康", "Run", "5k")
	if code != exitcode.Success || stdout != "ok\n" {
		t.Fatalf("add failed: %d %q", code, stdout)
	}

	stdout, _, _ = b.run(t, "ls", "--config", dir)
	if stdout != "   1  [ ] Run 5k  #健康  due 2024/05/11 (soon)\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}
