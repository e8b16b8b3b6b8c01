package commands

import (
	"context"
	"flag"
	"io"
	"time"

	"cloudtodo/internal/calendar"
	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/output"
)

// monthLayout is the --month flag format.
const monthLayout = "2006-01"

func init() {
	Register(&CalendarCmd{})
}

// CalendarCmd implements the calendar command.
// Only tasks with both a start and a due date appear on the grid.
type CalendarCmd struct {
	month string
}

// SetMonth sets the month (for testing).
func (c *CalendarCmd) SetMonth(month string) {
	c.month = month
}

func (c *CalendarCmd) Name() string      { return "calendar" }
func (c *CalendarCmd) Aliases() []string { return []string{"cal"} }
func (c *CalendarCmd) Synopsis() string  { return "Show a month with its scheduled tasks" }
func (c *CalendarCmd) Usage() string     { return "todo calendar [--month YYYY-MM]" }
func (c *CalendarCmd) NeedsAuth() bool   { return true }

func (c *CalendarCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.month, "month", "", "")
	fs.StringVar(&c.month, "m", "", "")
}

func (c *CalendarCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	today := env.today()
	year, month := today.Year(), today.Month()
	if c.month != "" {
		t, err := time.Parse(monthLayout, c.month)
		if err != nil {
			return usageError(errOut, "invalid --month: %s (want YYYY-MM)", c.month)
		}
		year, month = t.Year(), t.Month()
	}

	if err := env.Tasks.Load(ctx); err != nil {
		return fail(errOut, err)
	}

	// calendar months are 0-based.
	days := calendar.GenerateDays(year, int(month)-1, today)
	f := output.Formatter{Color: env.Color, Today: today}
	f.FormatCalendar(out, year, int(month)-1, days, env.Tasks.Tasks())
	return exitcode.Success
}
