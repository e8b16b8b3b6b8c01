package commands

import (
	"context"
	"flag"
	"io"
	"strings"
	"time"

	"cloudtodo/internal/category"
	"cloudtodo/internal/dates"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	start    string
	due      string
	category string
}

// SetFields sets the optional task fields (for testing).
func (c *AddCmd) SetFields(start, due, cat string) {
	c.start, c.due, c.category = start, due, cat
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "todo add [--start YYYY-MM-DD] [--due YYYY-MM-DD] [--category <c>] <text...>"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.start, "start", "", "")
	fs.StringVar(&c.due, "due", "", "")
	fs.StringVar(&c.category, "category", "", "")
	fs.StringVar(&c.category, "c", "", "")
}

func (c *AddCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return usageError(errOut, "text required")
	}
	for _, d := range []struct{ flag, value string }{{"start", c.start}, {"due", c.due}} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseInLocation(dates.Layout, d.value, time.Local); err != nil {
			return usageError(errOut, "invalid --%s date: %s (want YYYY-MM-DD)", d.flag, d.value)
		}
	}
	if c.category != "" && !category.Valid(c.category) {
		return usageError(errOut, "unknown category: %s (run: todo categories)", c.category)
	}

	task, err := env.Tasks.AddTask(ctx, text, c.start, c.due, c.category)
	if err != nil {
		return fail(errOut, err)
	}
	env.Log.WithField("task", task.ID).Debug("task added")
	return env.ok(out)
}
