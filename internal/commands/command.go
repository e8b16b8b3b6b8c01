// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/config"
	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/service"
	"cloudtodo/internal/store"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a signed-in user.
	// Commands like help, version, categories return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}

// SessionCommand is implemented by commands that work on the auth session
// without requiring a signed-in user (login, logout, whoami).
type SessionCommand interface {
	Command
	NeedsSession() bool
}

// Env is what the dispatcher hands to a command.
//
// Config, Log and Now are always set. Session is set for commands that
// need auth or a session. Service and Tasks are set only when NeedsAuth
// returns true and a user is signed in.
type Env struct {
	Config  *config.Config
	Log     *logrus.Logger
	Now     func() time.Time
	Stdin   io.Reader
	Color   bool
	Session *auth.Session
	Service service.Service
	Tasks   *store.Store
}

// NeedsSession reports whether cmd must be run with a backend and session.
func NeedsSession(cmd Command) bool {
	if cmd.NeedsAuth() {
		return true
	}
	sc, ok := cmd.(SessionCommand)
	return ok && sc.NeedsSession()
}

func (e *Env) today() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// ok prints the success line unless quiet.
func (e *Env) ok(out io.Writer) int {
	if !e.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// fail prints err as an error line and returns its exit code.
func fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %s\n", errorText(err))
	return exitcode.For(err)
}

// errorText renders err for the user. Auth failures use the localized
// provider messages.
func errorText(err error) string {
	if service.KindOf(err) == service.KindAuth {
		return auth.Message(err)
	}
	return err.Error()
}

// usageError prints a user error line.
func usageError(errOut io.Writer, format string, args ...any) int {
	fmt.Fprintf(errOut, "error: "+format+"\n", args...)
	return exitcode.UserError
}
