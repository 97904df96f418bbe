package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dubline/internal/services"
)

// commandRunner executes an external command.
type commandRunner func(ctx context.Context, name string, args ...string) error

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// runBounded runs one command under timeout. An expired deadline becomes
// ErrTimeout; cancellation of ctx itself is returned as ctx.Err().
func runBounded(ctx context.Context, run commandRunner, timeout time.Duration, stage, operation, name string, args ...string) error {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := run(callCtx, name, args...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		// The cause is flattened so callers do not mistake a hung tool for an interrupt.
		return services.Wrap(services.ErrTimeout, stage, operation, fmt.Sprintf("no result within %s: %v", timeout, err), nil)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return services.Wrap(services.ErrConfiguration, stage, operation, fmt.Sprintf("binary %q not found", name), err)
	}
	return services.Wrap(services.ErrExternalTool, stage, operation, "", err)
}
