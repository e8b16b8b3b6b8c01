package commands

import (
	"context"
	"flag"
	"io"

	"cloudtodo/internal/category"
	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/output"
)

func init() {
	Register(&CategoriesCmd{})
}

// CategoriesCmd lists the categories accepted by add.
type CategoriesCmd struct{}

func (c *CategoriesCmd) Name() string      { return "categories" }
func (c *CategoriesCmd) Aliases() []string { return nil }
func (c *CategoriesCmd) Synopsis() string  { return "List task categories" }
func (c *CategoriesCmd) Usage() string     { return "todo categories" }
func (c *CategoriesCmd) NeedsAuth() bool   { return false }

func (c *CategoriesCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *CategoriesCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	f := output.Formatter{Color: env.Color}
	for _, s := range category.All() {
		f.FormatCategory(out, s)
	}
	return exitcode.Success
}
