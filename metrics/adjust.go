package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SuccessRPS computes the success-adjusted throughput:
// (total - errors) / duration, clamped at zero successes. When the
// measured duration is unavailable the raw reported rate passes
// through unchanged.
func SuccessRPS(rawRPS string, totalRequests, totalErrors int, durationSeconds float64) string {
	if durationSeconds <= 0 {
		return rawRPS
	}

	successful := max(0, totalRequests-max(0, totalErrors))

	return fmt.Sprintf("%.2f", float64(successful)/durationSeconds)
}

// AdjustedLatency blends the reported mean latency with the configured
// request timeout, weighted by completed vs timed-out request counts.
// With no timeouts the raw value passes through unchanged.
func AdjustedLatency(rawLatency string, successfulRequests, timeoutErrors int, timeoutSeconds float64) string {
	if rawLatency == Sentinel || timeoutErrors <= 0 {
		return rawLatency
	}

	rawSeconds, ok := LatencyToSeconds(rawLatency)
	if !ok {
		return rawLatency
	}

	completed := max(0, successfulRequests)

	total := completed + timeoutErrors
	if total <= 0 {
		return rawLatency
	}

	adjusted := (rawSeconds*float64(completed) + timeoutSeconds*float64(timeoutErrors)) / float64(total)

	return FormatLatency(adjusted)
}

var latencyPattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*(us|ms|s)$`)

// LatencyToSeconds parses a latency value with a us/ms/s unit suffix.
func LatencyToSeconds(value string) (float64, bool) {
	g := latencyPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(value)))
	if g == nil {
		return 0, false
	}

	amount, err := strconv.ParseFloat(g[1], 64)
	if err != nil {
		return 0, false
	}

	switch g[2] {
	case "us":
		return amount / 1e6, true
	case "ms":
		return amount / 1e3, true
	default:
		return amount, true
	}
}

// FormatLatency renders seconds with the conventional suffix: us below
// one millisecond, ms below one second, s otherwise.
func FormatLatency(seconds float64) string {
	switch {
	case seconds >= 1.0:
		return fmt.Sprintf("%.2fs", seconds)
	case seconds >= 0.001:
		return fmt.Sprintf("%.2fms", seconds*1e3)
	default:
		return fmt.Sprintf("%.2fus", seconds*1e6)
	}
}

// ParseNumeric parses a metric cell into a float, tolerating thousands
// separators. Sentinel and non-numeric values return false.
func ParseNumeric(value string) (float64, bool) {
	if value == "" || value == Sentinel {
		return 0, false
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, false
	}

	return f, true
}
