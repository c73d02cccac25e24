// Package loadgen builds and runs the external load generators (wrk for
// HTTP/1.1, h2load for HTTP/2). Their combined textual output is the
// only data contract; it is always captured, even on non-zero exit, so
// metrics can be mined from partial runs.
package loadgen

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// execTimeoutMargin pads the measurement duration to bound a stuck
// invocation. A generator exceeding it is killed and treated as crashed.
const execTimeoutMargin = 60 * time.Second

// ExecFunc runs a load-generator argv and returns its combined output
// and whether the invocation crashed (non-zero exit, signal death, or
// exceeded timeout). Indirection so the retry ladder is testable
// without external tools.
type ExecFunc func(argv []string, timeout time.Duration) (string, bool)

// Exec is the real ExecFunc backed by os/exec.
func Exec(argv []string, timeout time.Duration) (string, bool) {
	ctx := context.Background()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// Bound the post-kill wait so a generator child holding the output
	// pipe open cannot stall the run.
	cmd.WaitDelay = 5 * time.Second

	out, err := cmd.CombinedOutput()

	return string(out), err != nil
}

// CheckTool verifies the load generator for the protocol is installed.
func CheckTool(tool string) error {
	if _, err := exec.LookPath(tool); err != nil {
		return errors.New(tool + " not found in PATH")
	}

	return nil
}

// Warmup runs argv for its side effects only: output is discarded and
// failures are logged, never propagated. Warm-up passes exist to
// stabilize server and OS caches before the scored pass.
func Warmup(run ExecFunc, argv []string, timeout time.Duration, logger *slog.Logger) {
	if _, crashed := run(argv, timeout); crashed {
		logger.Warn("warm-up pass did not complete cleanly",
			slog.String("tool", argv[0]))
	}
}
