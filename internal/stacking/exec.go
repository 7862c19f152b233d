package stacking

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/example/stackctl/internal/taskdesc"
)

// Exec runs the external stacker tool for one task, streaming its
// output to this process's stdout/stderr so PBS job logs capture it.
func Exec(ctx context.Context, cfg *taskdesc.AppConfig, q taskdesc.Query, task Task) error {
	args := Command(cfg, q, task)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("stack %s cell %s: %w", task.Product, task.Cell, err)
	}
	return nil
}
