package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
)

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

// runCommand runs an interactive command attached to the configured streams.
// A non-zero exit is reported as *ExitError.
func runCommand(ctx context.Context, command string, args []string, opts ExecOptions) error {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start).Milliseconds()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = &ExitError{Command: command, ExitCode: exitCode}
		} else {
			exitCode = -1
		}
	}

	loggerpkg.Debug(opts.Logger, "command finished", map[string]any{
		"command":     command,
		"args":        args,
		"exit_code":   exitCode,
		"duration_ms": duration,
	})
	return err
}
