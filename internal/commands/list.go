package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/output"
	"cloudtodo/internal/store"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `todo` (no args) and `todo list`.
type ListCmd struct {
	filter string
}

// SetFilter sets the filter (for testing).
func (c *ListCmd) SetFilter(filter string) {
	c.filter = filter
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks, newest first" }
func (c *ListCmd) Usage() string     { return "todo list [--filter all|active|completed]" }
func (c *ListCmd) NeedsAuth() bool   { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.filter, "filter", "", "")
	fs.StringVar(&c.filter, "f", "", "")
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	name := c.filter
	if name == "" {
		name = env.Config.Settings.DefaultFilter
	}
	filter, err := store.ParseFilter(name)
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	if err := env.Tasks.Load(ctx); err != nil {
		return fail(errOut, err)
	}
	tasks := env.Tasks.Tasks()

	f := output.Formatter{Color: env.Color, Today: env.today()}
	shown := 0
	for i, task := range tasks {
		if !filter.Match(task) {
			continue
		}
		// Numbers index the full list so done and rm accept them under any filter.
		f.FormatTask(out, i+1, task)
		shown++
	}

	if shown == 0 && !env.Config.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
	return exitcode.Success
}
