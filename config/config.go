// Package config holds the run parameters shared by every stage of a
// benchmark run: load-generator sizing, durations, protocol selection,
// filters and output locations.
package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Protocol selects the load-generation tool and wire protocol.
type Protocol string

const (
	ProtocolHTTP1 Protocol = "http1"
	ProtocolH2C   Protocol = "h2c"
	ProtocolH2TLS Protocol = "h2-tls"
)

// IsH2 reports whether the protocol uses h2load rather than wrk.
func (p Protocol) IsH2() bool {
	return p == ProtocolH2C || p == ProtocolH2TLS
}

// Tool returns the external load generator the protocol maps to.
func (p Protocol) Tool() string {
	if p.IsH2() {
		return "h2load"
	}
	return "wrk"
}

// Run holds every tunable of a benchmark run. Values are populated from
// environment defaults, then an optional YAML file, then CLI flags.
type Run struct {
	Protocol    Protocol `yaml:"protocol"`
	Threads     int      `yaml:"threads"`
	Connections int      `yaml:"connections"`
	Duration    string   `yaml:"duration"`
	Warmup      string   `yaml:"warmup"`
	Timeout     string   `yaml:"timeout"`
	H2Streams   int      `yaml:"h2_streams"`
	OutputDir   string   `yaml:"output"`
	Servers     string   `yaml:"servers"`
	Scenarios   string   `yaml:"scenarios"`
	Reference   string   `yaml:"reference"`
	SkipBuild   bool     `yaml:"skip_build"`

	// TimeoutSeconds is the parsed form of Timeout, used by the
	// latency-adjustment formula and the load-generator flags.
	TimeoutSeconds float64 `yaml:"-"`
}

// Defaults returns a Run populated from BENCH_* environment variables,
// falling back to the documented defaults.
func Defaults() Run {
	threads := envInt("BENCH_THREADS", max(1, runtime.NumCPU()/4))

	return Run{
		Protocol:    ProtocolHTTP1,
		Threads:     threads,
		Connections: envInt("BENCH_CONNECTIONS", 50*threads),
		Duration:    envStr("BENCH_DURATION", "30s"),
		Warmup:      envStr("BENCH_WARMUP", "5s"),
		Timeout:     envStr("BENCH_TIMEOUT", "10s"),
		H2Streams:   envInt("BENCH_H2_STREAMS", 10),
		OutputDir:   envStr("BENCH_OUTPUT", "./results"),
		Servers:     "all-except-python",
		Scenarios:   "all",
		Reference:   "aeronet",
	}
}

// LoadFile overlays YAML settings from path onto r. Unset YAML fields
// leave the existing values untouched.
func (r *Run) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, r); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// Validate checks cross-field consistency and resolves derived values.
func (r *Run) Validate() error {
	switch r.Protocol {
	case ProtocolHTTP1, ProtocolH2C, ProtocolH2TLS:
	default:
		return fmt.Errorf("unknown protocol %q", r.Protocol)
	}

	if r.Threads < 1 {
		r.Threads = 1
	}

	secs, ok := DurationSeconds(r.Timeout)
	if !ok {
		return fmt.Errorf("invalid timeout value %q", r.Timeout)
	}

	r.TimeoutSeconds = secs

	if _, ok := DurationSeconds(r.Duration); !ok {
		return fmt.Errorf("invalid duration value %q", r.Duration)
	}

	if _, ok := DurationSeconds(r.Warmup); !ok {
		return fmt.Errorf("invalid warmup value %q", r.Warmup)
	}

	return nil
}

var durationPattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*(us|ms|s|m|h)?$`)

// DurationSeconds parses wrk-style duration strings ("30s", "500ms",
// "2m", bare "10") into seconds. A missing unit means seconds.
func DurationSeconds(value string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	switch m[2] {
	case "us":
		return amount / 1e6, true
	case "ms":
		return amount / 1e3, true
	case "", "s":
		return amount, true
	case "m":
		return amount * 60, true
	case "h":
		return amount * 3600, true
	}

	return 0, false
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}
