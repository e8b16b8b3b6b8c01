package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/output"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd prints the signed-in user.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string       { return "whoami" }
func (c *WhoamiCmd) Aliases() []string  { return nil }
func (c *WhoamiCmd) Synopsis() string   { return "Show the signed-in user" }
func (c *WhoamiCmd) Usage() string      { return "todo whoami" }
func (c *WhoamiCmd) NeedsAuth() bool    { return false }
func (c *WhoamiCmd) NeedsSession() bool { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	user := env.Session.CurrentUser()
	if user == nil {
		if msg := env.Session.Err(); msg != "" {
			fmt.Fprintf(errOut, "error: %s\n", msg)
		} else {
			fmt.Fprintln(errOut, "error: not logged in (run: todo login)")
		}
		return exitcode.AuthError
	}
	output.FormatUser(out, *user)
	return exitcode.Success
}
