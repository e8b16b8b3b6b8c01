package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/commands"
	"cloudtodo/internal/config"
	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/logging"
	"cloudtodo/internal/service"
	"cloudtodo/internal/store"
)

// Backend is an auth provider and the task service that goes with it.
type Backend struct {
	Provider auth.Provider

	// Service returns the task service acting for sess.
	Service func(ctx context.Context, sess *auth.Session) (service.Service, error)

	// Close releases the backend. May be nil.
	Close func() error
}

// BackendFactory creates the backend from config.
// Used to inject the backend during dispatch. prompt receives interactive
// instructions such as the sign-in URL.
type BackendFactory func(ctx context.Context, cfg *config.Config, log *logrus.Logger, prompt io.Writer) (*Backend, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStdin sets the reader commands prompt from.
func WithStdin(r io.Reader) Option {
	return func(d *Dispatcher) { d.stdin = r }
}

// WithColor enables ANSI colors in command output.
func WithColor(on bool) Option {
	return func(d *Dispatcher) { d.color = on }
}

// WithClock sets the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  BackendFactory
	stdin    io.Reader
	color    bool
	now      func() time.Time
}

// NewDispatcher creates a new dispatcher with the given registry and backend factory.
func NewDispatcher(registry *commands.Registry, factory BackendFactory, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		factory:  factory,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return flagError(errOut, err)
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	log := logging.New(errOut, cfg.Settings.LogLevel, debug)
	log.WithFields(logrus.Fields{"command": cmd.Name(), "config": cfg.Dir}).Debug("dispatching")

	env := &commands.Env{
		Config: cfg,
		Log:    log,
		Now:    d.now,
		Stdin:  d.stdin,
		Color:  d.color,
	}

	if commands.NeedsSession(cmd) {
		backend, code, ok := d.connect(ctx, cmd, env, errOut)
		if !ok {
			return code
		}
		if backend.Close != nil {
			defer func() {
				if err := backend.Close(); err != nil {
					log.WithError(err).Warn("failed to close backend")
				}
			}()
		}
		if cmd.NeedsAuth() {
			svc, err := backend.Service(ctx, env.Session)
			if err != nil {
				return backendError(errOut, err)
			}
			env.Service = svc
			env.Tasks = store.New(svc, env.Session, store.WithLogger(log))
		}
	}

	return cmd.Run(ctx, env, positionalArgs, out, errOut)
}

// connect creates the backend and restores the session into env. Commands
// that need auth stop here when nobody is signed in.
func (d *Dispatcher) connect(ctx context.Context, cmd commands.Command, env *commands.Env, errOut io.Writer) (*Backend, int, bool) {
	if d.factory == nil {
		fmt.Fprintln(errOut, "error: no backend configured")
		return nil, exitcode.BackendError, false
	}
	backend, err := d.factory(ctx, env.Config, env.Log, errOut)
	if err != nil {
		return nil, backendError(errOut, err), false
	}

	sess := auth.NewSession(backend.Provider, auth.FileStore{Path: env.Config.SessionPath()}, env.Log)
	resumeErr := sess.Resume(ctx)
	env.Session = sess

	if !cmd.NeedsAuth() {
		return backend, exitcode.Success, true
	}
	if resumeErr != nil {
		fmt.Fprintf(errOut, "error: %s (run: todo login)\n", auth.Message(resumeErr))
		closeBackend(backend)
		return nil, exitcode.For(resumeErr), false
	}
	if sess.CurrentUser() == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: todo login)")
		closeBackend(backend)
		return nil, exitcode.AuthError, false
	}
	return backend, exitcode.Success, true
}

func closeBackend(b *Backend) {
	if b.Close != nil {
		_ = b.Close()
	}
}

func backendError(errOut io.Writer, err error) int {
	if service.KindOf(err) == service.KindAuth {
		fmt.Fprintf(errOut, "error: auth error: %s\n", auth.Message(err))
	} else {
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
	}
	return exitcode.For(err)
}

func flagError(errOut io.Writer, err error) int {
	errStr := err.Error()

	// Check for missing flag value
	if strings.Contains(errStr, "needs a value") || strings.Contains(errStr, "flag needs an argument") {
		// Extract flag name
		parts := strings.Split(errStr, ":")
		if len(parts) > 0 {
			flagPart := strings.TrimSpace(parts[len(parts)-1])
			fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagPart)
			return exitcode.UserError
		}
	}

	// Check for unknown flag
	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}
