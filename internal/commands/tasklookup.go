package commands

import (
	"context"
	"io"

	"cloudtodo/internal/exitcode"
	"cloudtodo/internal/service"
)

// resolveTask loads the list and returns the task numbered by args.
// On failure it has already printed the error and returns the exit code.
func resolveTask(ctx context.Context, env *Env, args []string, errOut io.Writer) (service.Task, int, bool) {
	num, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, usageError(errOut, "%v", err), false
	}
	if err := env.Tasks.Load(ctx); err != nil {
		return service.Task{}, fail(errOut, err), false
	}
	task, err := taskAt(env.Tasks.Tasks(), num)
	if err != nil {
		return service.Task{}, fail(errOut, err), false
	}
	return task, exitcode.Success, true
}
