package loadgen

import (
	"fmt"
	"time"

	"github.com/aeronet-labs/httpbench/config"
)

// WrkSpec describes one wrk invocation.
type WrkSpec struct {
	Threads     int
	Connections int
	Duration    string // wrk duration string, e.g. "30s"
	Timeout     string // per-request timeout, e.g. "10s"
	LuaScript   string
	URL         string
}

// Args renders the wrk command line.
func (s WrkSpec) Args() []string {
	return []string{
		"wrk",
		fmt.Sprintf("-t%d", s.Threads),
		fmt.Sprintf("-c%d", s.Connections),
		fmt.Sprintf("-d%s", s.Duration),
		"--timeout=" + s.Timeout,
		"-s", s.LuaScript,
		s.URL,
	}
}

// ProcessTimeout bounds the whole invocation: the configured duration
// plus a safety margin for connection draining and report printing.
func (s WrkSpec) ProcessTimeout() time.Duration {
	secs, ok := config.DurationSeconds(s.Duration)
	if !ok {
		secs = 30
	}

	return time.Duration(secs)*time.Second + execTimeoutMargin
}
