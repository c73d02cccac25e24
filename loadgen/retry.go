package loadgen

import (
	"log/slog"

	"github.com/aeronet-labs/httpbench/metrics"
)

// retryDivisors is the fixed concurrency-reduction ladder applied after
// an h2load crash, floored at minRetryConnections.
var retryDivisors = []int{4, 16}

const minRetryConnections = 4

// RunH2 executes an h2load invocation and, when it crashes (libev epoll
// assertions under connection-teardown races are a known failure mode),
// retries at reduced concurrency. The first non-crashing retry wins; if
// every attempt crashes the output with the most succeeded requests is
// kept. The returned crashed flag is false as soon as any attempt
// completed cleanly.
func RunH2(run ExecFunc, spec H2LoadSpec, logger *slog.Logger) (string, bool) {
	argv := spec.Args()
	timeout := spec.ProcessTimeout()

	output, crashed := run(argv, timeout)
	if !crashed {
		return output, false
	}

	for _, divisor := range retryDivisors {
		retryConns := max(spec.Connections/divisor, minRetryConnections)
		if retryConns >= spec.Connections {
			break
		}

		logger.Info("load generator crashed, retrying at reduced concurrency",
			slog.Int("connections", retryConns),
			slog.Int("original", spec.Connections),
		)

		retryOutput, retryCrashed := run(withConnections(argv, retryConns), timeout)
		if !retryCrashed {
			return retryOutput, false
		}

		// Keep whichever crashed attempt got further.
		if h2Succeeded(retryOutput) > h2Succeeded(output) {
			output = retryOutput
		}
	}

	return output, true
}

func h2Succeeded(output string) int {
	return metrics.ParseH2Load(output).Succeeded
}
