package metrics

import (
	"regexp"
	"strconv"
	"strings"
)

// H2LoadMetrics holds the values mined from one h2load invocation.
type H2LoadMetrics struct {
	RPS             string
	Latency         string // mean time-for-request with unit suffix
	Transfer        string
	DurationSeconds float64
	TotalRequests   int
	Succeeded       int
	Failed          int
	Errored         int
	Timeout         int
	Non2xx          int // 3xx+4xx+5xx summed
}

// TotalErrors sums failed, errored, timed-out and non-2xx requests.
func (m H2LoadMetrics) TotalErrors() int {
	return m.Failed + m.Errored + m.Timeout + m.Non2xx
}

var (
	finishedPattern = regexp.MustCompile(
		`finished\s+in\s+([0-9.]+)s?,\s+([0-9.]+)\s+req/s,\s+([0-9.]+\S+)/s`)
	countPatterns = map[string]*regexp.Regexp{
		"total":     regexp.MustCompile(`(\d+)\s+total`),
		"succeeded": regexp.MustCompile(`(\d+)\s+succeeded`),
		"failed":    regexp.MustCompile(`(\d+)\s+failed`),
		"errored":   regexp.MustCompile(`(\d+)\s+errored`),
		"timeout":   regexp.MustCompile(`(\d+)\s+timeout`),
	}
	statusPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s+3xx`),
		regexp.MustCompile(`(\d+)\s+4xx`),
		regexp.MustCompile(`(\d+)\s+5xx`),
	}
)

// ParseH2Load extracts metrics from h2load output:
//
//	finished in 10.01s, 12345.67 req/s, 56.78MB/s
//	requests: 123456 total, ... succeeded, N failed, N errored, N timeout
//	status codes: 123456 2xx, 0 3xx, 0 4xx, 0 5xx
//	time for request:  123.45us  456.78us  234.56us  ...
//
// The third numeric field of the time-for-request line is the mean.
func ParseH2Load(output string) H2LoadMetrics {
	m := H2LoadMetrics{RPS: Sentinel, Latency: Sentinel, Transfer: Sentinel}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if g := finishedPattern.FindStringSubmatch(line); g != nil {
			m.DurationSeconds, _ = strconv.ParseFloat(g[1], 64)
			m.RPS = g[2]
			m.Transfer = g[3] + "/s"

			continue
		}

		if strings.HasPrefix(line, "requests:") {
			m.TotalRequests = findCount(countPatterns["total"], line)
			m.Succeeded = findCount(countPatterns["succeeded"], line)
			m.Failed = findCount(countPatterns["failed"], line)
			m.Errored = findCount(countPatterns["errored"], line)
			m.Timeout = findCount(countPatterns["timeout"], line)

			continue
		}

		if strings.HasPrefix(line, "status codes:") {
			non2xx := 0
			for _, p := range statusPatterns {
				non2xx += findCount(p, line)
			}

			m.Non2xx = non2xx

			continue
		}

		if strings.HasPrefix(line, "time for request:") {
			// fields: "time" "for" "request:" min max mean sd "+/-" "sd"
			if fields := strings.Fields(line); len(fields) >= 6 {
				m.Latency = fields[5]
			}
		}
	}

	return m
}

func findCount(p *regexp.Regexp, line string) int {
	g := p.FindStringSubmatch(line)
	if g == nil {
		return 0
	}

	n, _ := strconv.Atoi(g[1])

	return n
}
