// Package metrics parses load-generator text output into structured
// values and applies the error/timeout correction formulas. All parsers
// are pure functions of the input text; unrecognized lines are ignored.
package metrics

import (
	"regexp"
	"strconv"
	"strings"
)

// Sentinel marks a metric that could not be measured.
const Sentinel = "-"

// WrkMetrics holds the values mined from one wrk invocation.
type WrkMetrics struct {
	RPS             string // Requests/sec, verbatim
	Latency         string // mean latency with unit suffix, verbatim
	Transfer        string // Transfer/sec, verbatim
	Non2xx          int
	TotalRequests   int
	DurationSeconds float64 // 0 when the "requests in" line is absent

	// Error counters printed by the lua script summaries.
	ErrConnect int
	ErrRead    int
	ErrWrite   int
	ErrTimeout int
}

// TotalErrors sums every error category, non-2xx responses included.
func (m WrkMetrics) TotalErrors() int {
	return m.ErrConnect + m.ErrRead + m.ErrWrite + m.ErrTimeout + m.Non2xx
}

// AnyErrors reports whether wrk observed any protocol-level problem.
func (m WrkMetrics) AnyErrors() bool {
	return m.TotalErrors() > 0
}

var requestsInPattern = regexp.MustCompile(`(\d+)\s+requests\s+in\s+([0-9]*\.?[0-9]+)s`)

// ParseWrk extracts metrics from wrk output. The first Latency line
// wins; missing markers leave sentinel/zero values.
func ParseWrk(output string) WrkMetrics {
	m := WrkMetrics{RPS: Sentinel, Latency: Sentinel, Transfer: Sentinel}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "Non-2xx"):
			m.Non2xx = countAfterColon(line, 1)

		case strings.Contains(line, "requests in"):
			if g := requestsInPattern.FindStringSubmatch(line); g != nil {
				m.TotalRequests, _ = strconv.Atoi(g[1])
				m.DurationSeconds, _ = strconv.ParseFloat(g[2], 64)
			}

		case strings.HasPrefix(line, "Requests/sec"):
			m.RPS = afterColon(line)

		case strings.HasPrefix(line, "Latency") && m.Latency == Sentinel:
			if fields := strings.Fields(line); len(fields) >= 2 {
				m.Latency = fields[1]
			}

		case strings.HasPrefix(line, "Transfer/sec"):
			m.Transfer = afterColon(line)

		case strings.HasPrefix(line, "Errors (connect):"):
			m.ErrConnect = countAfterColon(line, max(1, m.ErrConnect))

		case strings.HasPrefix(line, "Errors (read):"):
			m.ErrRead = countAfterColon(line, max(1, m.ErrRead))

		case strings.HasPrefix(line, "Errors (write):"):
			m.ErrWrite = countAfterColon(line, max(1, m.ErrWrite))

		case strings.HasPrefix(line, "Errors (timeout):"):
			m.ErrTimeout = countAfterColon(line, max(1, m.ErrTimeout))
		}
	}

	return m
}

func afterColon(line string) string {
	_, rest, _ := strings.Cut(line, ":")
	return strings.TrimSpace(rest)
}

// countAfterColon parses the integer after the first colon. A marker
// line with an unparseable count still counts as at least fallback, so
// a mangled error line is never mistaken for a clean run.
func countAfterColon(line string, fallback int) int {
	n, err := strconv.Atoi(afterColon(line))
	if err != nil {
		return fallback
	}

	return n
}
