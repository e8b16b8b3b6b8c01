package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/migrate"
)

func init() {
	Register(&MigrateCmd{})
}

// MigrateCmd moves the user's tasks out of the legacy flat collection.
// list runs the same migration on its own when the user has no tasks.
type MigrateCmd struct{}

func (c *MigrateCmd) Name() string      { return "migrate" }
func (c *MigrateCmd) Aliases() []string { return nil }
func (c *MigrateCmd) Synopsis() string  { return "Move tasks from the legacy collection" }
func (c *MigrateCmd) Usage() string     { return "todo migrate" }
func (c *MigrateCmd) NeedsAuth() bool   { return true }

func (c *MigrateCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *MigrateCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	res, err := migrate.Run(ctx, env.Service, env.Session.UserID(), env.Log)
	if err != nil {
		return fail(errOut, err)
	}
	if !env.Config.Quiet {
		if res.Migrated == 0 {
			fmt.Fprintln(out, "nothing to migrate")
		} else {
			fmt.Fprintf(out, "migrated %d tasks\n", res.Migrated)
		}
	}
	return exitcode.Success
}
