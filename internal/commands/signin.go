package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"strings"

	"cloudtodo/internal/exitcode"
)

// PasswordEnv supplies the password to register and signin without a prompt.
const PasswordEnv = "TODO_PASSWORD"

func init() {
	Register(&RegisterCmd{})
	Register(&SigninCmd{})
}

// RegisterCmd creates an email/password account and signs in as it.
type RegisterCmd struct {
	email string
	name  string
}

// SetAccount sets the email and display name (for testing).
func (c *RegisterCmd) SetAccount(email, name string) {
	c.email, c.name = email, name
}

func (c *RegisterCmd) Name() string       { return "register" }
func (c *RegisterCmd) Aliases() []string  { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string   { return "Create an account with email and password" }
func (c *RegisterCmd) Usage() string      { return "todo register --email <address> --name <display name>" }
func (c *RegisterCmd) NeedsAuth() bool    { return false }
func (c *RegisterCmd) NeedsSession() bool { return true }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.name, "name", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if alreadySignedIn(env, out) {
		return exitcode.Success
	}
	password, err := readPassword(env, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	user, err := env.Session.RegisterWithEmail(ctx, c.email, password, c.name)
	if err != nil {
		return fail(errOut, err)
	}
	return signedIn(env, out, user)
}

// SigninCmd signs in with email and password.
type SigninCmd struct {
	email string
}

// SetEmail sets the email (for testing).
func (c *SigninCmd) SetEmail(email string) {
	c.email = email
}

func (c *SigninCmd) Name() string       { return "signin" }
func (c *SigninCmd) Aliases() []string  { return nil }
func (c *SigninCmd) Synopsis() string   { return "Sign in with email and password" }
func (c *SigninCmd) Usage() string      { return "todo signin --email <address>" }
func (c *SigninCmd) NeedsAuth() bool    { return false }
func (c *SigninCmd) NeedsSession() bool { return true }

func (c *SigninCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

func (c *SigninCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if alreadySignedIn(env, out) {
		return exitcode.Success
	}
	password, err := readPassword(env, errOut)
	if err != nil {
		return fail(errOut, err)
	}
	user, err := env.Session.LoginWithEmail(ctx, c.email, password)
	if err != nil {
		return fail(errOut, err)
	}
	return signedIn(env, out, user)
}

// readPassword returns TODO_PASSWORD when set, otherwise the first line of
// stdin. An empty password is passed through so the session reports the
// missing field.
func readPassword(env *Env, prompt io.Writer) (string, error) {
	if p, ok := os.LookupEnv(PasswordEnv); ok {
		return p, nil
	}
	if env.Stdin == nil {
		return "", nil
	}
	io.WriteString(prompt, "Password: ")
	line, err := bufio.NewReader(env.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
