package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aeronet-labs/httpbench/config"
	"github.com/aeronet-labs/httpbench/metrics"
	"github.com/aeronet-labs/httpbench/procmem"
)

// Summary is the benchmark_latest.json schema consumed by downstream
// rendering (pages, badges) without scraping the pretty tables.
type Summary struct {
	Protocol    string                     `json:"protocol"`
	Tool        string                     `json:"tool"`
	Threads     int                        `json:"threads"`
	Connections int                        `json:"connections"`
	Duration    string                     `json:"duration"`
	Warmup      string                     `json:"warmup"`
	Timeout     string                     `json:"timeout"`
	H2Streams   int                        `json:"h2_streams,omitempty"`
	Servers     []string                   `json:"servers"`
	Scenarios   []string                   `json:"scenarios"`
	Results     map[string]*ScenarioResult `json:"results"`
}

// ScenarioResult maps server names to metric values for one scenario.
type ScenarioResult struct {
	RPS        map[string]string        `json:"rps"`
	RPSRaw     map[string]string        `json:"rps_raw"`
	Latency    map[string]string        `json:"latency"`
	LatencyRaw map[string]string        `json:"latency_raw"`
	Timeouts   map[string]int           `json:"timeouts"`
	Transfer   map[string]string        `json:"transfer"`
	Winners    map[string]string        `json:"winners"`
	Memory     map[string]MemorySummary `json:"memory,omitempty"`
}

// MemorySummary is a memory snapshot converted to megabytes.
type MemorySummary struct {
	RSSMB    *float64 `json:"rss_mb"`
	PeakMB   *float64 `json:"peak_mb"`
	VMHWMMB  *float64 `json:"vmhwm_mb"`
	VMSizeMB *float64 `json:"vmsize_mb"`
	SwapMB   *float64 `json:"swap_mb"`
	Threads  *int64   `json:"threads"`
}

// BuildSummary assembles the JSON summary from the result store.
func BuildSummary(run config.Run, store *Store) *Summary {
	s := &Summary{
		Protocol:    string(run.Protocol),
		Tool:        run.Protocol.Tool(),
		Threads:     run.Threads,
		Connections: run.Connections,
		Duration:    run.Duration,
		Warmup:      run.Warmup,
		Timeout:     run.Timeout,
		Servers:     store.Servers,
		Scenarios:   store.Scenarios,
		Results:     make(map[string]*ScenarioResult, len(store.Scenarios)),
	}

	if run.Protocol.IsH2() {
		s.H2Streams = run.H2Streams
	}

	for _, scenario := range store.Scenarios {
		entry := &ScenarioResult{
			RPS:        map[string]string{},
			RPSRaw:     map[string]string{},
			Latency:    map[string]string{},
			LatencyRaw: map[string]string{},
			Timeouts:   map[string]int{},
			Transfer:   map[string]string{},
			Winners:    map[string]string{},
		}

		if winner := store.Winner(scenario); winner != "" {
			entry.Winners["rps"] = winner
		}

		for _, server := range store.Servers {
			cell, ok := store.Cell(server, scenario)
			if !ok {
				continue
			}

			entry.RPS[server] = cell.RPS
			entry.RPSRaw[server] = cell.RPSRaw
			entry.Latency[server] = cell.Latency
			entry.LatencyRaw[server] = cell.LatencyRaw
			entry.Timeouts[server] = cell.TimeoutErrors
			entry.Transfer[server] = cell.Transfer

			if cell.Memory != nil {
				if entry.Memory == nil {
					entry.Memory = map[string]MemorySummary{}
				}

				entry.Memory[server] = MemorySummary{
					RSSMB:    procmem.KBToMB(cell.Memory.RSSKB),
					PeakMB:   procmem.KBToMB(cell.Memory.PeakKB),
					VMHWMMB:  procmem.KBToMB(cell.Memory.HWMKB),
					VMSizeMB: procmem.KBToMB(cell.Memory.VMSizeKB),
					SwapMB:   procmem.KBToMB(cell.Memory.VMSwapKB),
					Threads:  cell.Memory.Threads,
				}
			}
		}

		s.Results[scenario] = entry
	}

	return s
}

// WriteSummary persists the summary as benchmark_latest.json under dir.
func WriteSummary(dir string, s *Summary) error {
	return writeJSON(filepath.Join(dir, "benchmark_latest.json"), s)
}

// Badge is the shields.io endpoint schema for the performance badge.
type Badge struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
	LabelColor    string `json:"labelColor"`
	NamedLogo     string `json:"namedLogo"`
	CacheSeconds  int    `json:"cacheSeconds"`
}

// BuildBadge derives the badge from the reference server's best
// adjusted throughput across all scenarios. Returns nil when the
// reference server produced no usable numbers.
func BuildBadge(s *Summary, reference string) *Badge {
	best := 0.0

	for _, entry := range s.Results {
		val, ok := metrics.ParseNumeric(entry.RPS[reference])
		if !ok {
			continue
		}

		if val > best {
			best = val
		}
	}

	if best <= 0 {
		return nil
	}

	return &Badge{
		SchemaVersion: 1,
		Label:         reference + " peak rps",
		Message:       formatBadgeValue(best) + " req/s",
		Color:         badgeColor(best),
		LabelColor:    "#0f172a",
		NamedLogo:     "speedtest",
		CacheSeconds:  3600,
	}
}

// WriteBadge persists the badge as benchmark_badge.json under dir.
// A nil badge writes nothing.
func WriteBadge(dir string, b *Badge) error {
	if b == nil {
		return nil
	}

	return writeJSON(filepath.Join(dir, "benchmark_badge.json"), b)
}

func formatBadgeValue(value float64) string {
	switch {
	case value >= 1_000_000:
		return fmt.Sprintf("%.1fM", value/1_000_000)
	case value >= 1_000:
		return fmt.Sprintf("%.0fk", value/1_000)
	default:
		return fmt.Sprintf("%.0f", value)
	}
}

// badgeColor buckets throughput into shields.io color tiers.
func badgeColor(value float64) string {
	switch {
	case value >= 200_000:
		return "brightgreen"
	case value >= 100_000:
		return "green"
	case value >= 50_000:
		return "yellowgreen"
	case value >= 10_000:
		return "yellow"
	default:
		return "lightgrey"
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return nil
}
