package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"cloudtodo/internal/auth"
	"cloudtodo/internal/config"
	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/service"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command: federated Google sign-in.
type LoginCmd struct{}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in with Google" }
func (c *LoginCmd) Usage() string      { return "todo login" }
func (c *LoginCmd) NeedsAuth() bool    { return false }
func (c *LoginCmd) NeedsSession() bool { return true }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if alreadySignedIn(env, out) {
		return exitcode.Success
	}

	user, err := env.Session.SignInWithGoogle(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", auth.GoogleMessage(err))
		if service.CodeOf(err) == auth.CodeConfig && !env.Config.HasOAuthClient() {
			printGoogleSetup(errOut, env.Config)
		}
		return exitcode.For(err)
	}
	return signedIn(env, out, user)
}

// alreadySignedIn prints a notice and returns true when a user is signed in.
func alreadySignedIn(env *Env, out io.Writer) bool {
	if env.Session.CurrentUser() == nil {
		return false
	}
	if !env.Config.Quiet {
		fmt.Fprintln(out, "already logged in")
	}
	return true
}

func signedIn(env *Env, out io.Writer, user *service.User) int {
	if !env.Config.Quiet && user != nil {
		fmt.Fprintf(out, "logged in as %s\n", user.Label())
	}
	return exitcode.Success
}

func printGoogleSetup(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "To sign in with Google, you need OAuth credentials:")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "1. Go to https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(w, "2. Select the project that hosts your Firebase app")
	fmt.Fprintln(w, "3. Create OAuth 2.0 credentials:")
	fmt.Fprintln(w, "   - Click 'Create Credentials' > 'OAuth client ID'")
	fmt.Fprintln(w, "   - Choose 'Desktop app' as application type")
	fmt.Fprintln(w, "   - Download the JSON file")
	fmt.Fprintln(w, "4. Enable Google as a sign-in provider in the Firebase console")
	fmt.Fprintln(w, "5. Save the JSON file as:")
	fmt.Fprintf(w, "   %s\n", cfg.OAuthClientPath())
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Or sign in with email: todo signin --email <address>")
}
