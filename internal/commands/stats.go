package commands

import (
	"context"
	"flag"
	"io"

	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/output"
	"cloudtodo/internal/store"
)

func init() {
	Register(&StatsCmd{})
}

// StatsCmd implements the stats command.
type StatsCmd struct{}

func (c *StatsCmd) Name() string      { return "stats" }
func (c *StatsCmd) Aliases() []string { return nil }
func (c *StatsCmd) Synopsis() string  { return "Summarize progress, overdue and upcoming tasks" }
func (c *StatsCmd) Usage() string     { return "todo stats" }
func (c *StatsCmd) NeedsAuth() bool   { return true }

func (c *StatsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatsCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if err := env.Tasks.Load(ctx); err != nil {
		return fail(errOut, err)
	}
	today := env.today()
	f := output.Formatter{Color: env.Color, Today: today}
	f.FormatStats(out, store.Summarize(env.Tasks.Tasks(), today))
	return exitcode.Success
}
