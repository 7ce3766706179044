// Package run wraps invocations of the external collaborator binaries.
package run

import (
	"context"
	"errors"
	"os"
	"os/exec"

	errs "github.com/zzenonn/volpack/internal/errors"
)

// Command runs name with args in dir (empty for the current directory),
// streaming the tool's output through, and returns an error on a non-zero
// exit. The call blocks until the process finishes; no timeout is enforced.
func Command(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errs.ToolFailedError(name, err)
	}
	return nil
}

// ExitCode runs the command and reports its exit status instead of treating
// non-zero as an error; some tools use the status as a tri-state result.
func ExitCode(ctx context.Context, dir, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, errs.ToolFailedError(name, err)
}
