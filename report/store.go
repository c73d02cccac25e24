// Package report accumulates per-(server, scenario) benchmark results
// and renders them as console tables, a plain-text results log, a
// machine-readable JSON summary and a badge document.
package report

import (
	"github.com/aeronet-labs/httpbench/metrics"
	"github.com/aeronet-labs/httpbench/procmem"
)

// Cell holds the measured values for one (server, scenario) pair.
// Sentinel "-" marks metrics that could not be measured.
type Cell struct {
	RPS           string // success-adjusted throughput
	RPSRaw        string // tool-reported throughput
	Latency       string // timeout-adjusted mean latency
	LatencyRaw    string // tool-reported mean latency
	Transfer      string
	TimeoutErrors int
	Memory        *procmem.Stats
}

// Unavailable is the sentinel cell recorded when measurement could not
// be completed. Every pair always receives a cell.
func Unavailable() Cell {
	return Cell{
		RPS:        metrics.Sentinel,
		RPSRaw:     metrics.Sentinel,
		Latency:    metrics.Sentinel,
		LatencyRaw: metrics.Sentinel,
		Transfer:   metrics.Sentinel,
	}
}

type key struct {
	server, scenario string
}

// Store is the per-run result table. It is only ever mutated by the
// single sequential driver, so it needs no locking.
type Store struct {
	Servers   []string // first-seen order, fixed at construction
	Scenarios []string

	cells map[key]*Cell
}

// NewStore creates a store for the resolved server and scenario lists.
func NewStore(servers, scenarios []string) *Store {
	return &Store{
		Servers:   servers,
		Scenarios: scenarios,
		cells:     make(map[key]*Cell, len(servers)*len(scenarios)),
	}
}

// Record stores the cell for (server, scenario); a later write for the
// same pair replaces the earlier one.
func (s *Store) Record(server, scenario string, cell Cell) {
	s.cells[key{server, scenario}] = &cell
}

// AttachMemory adds a memory snapshot to an already-recorded cell.
func (s *Store) AttachMemory(server, scenario string, stats *procmem.Stats) {
	if stats == nil {
		return
	}

	if cell, ok := s.cells[key{server, scenario}]; ok {
		cell.Memory = stats
	}
}

// Cell returns the recorded cell for (server, scenario).
func (s *Store) Cell(server, scenario string) (Cell, bool) {
	cell, ok := s.cells[key{server, scenario}]
	if !ok {
		return Cell{}, false
	}

	return *cell, true
}

// Empty reports whether nothing was recorded.
func (s *Store) Empty() bool {
	return len(s.cells) == 0
}

// Winner returns the server with the greatest adjusted throughput for
// scenario. Sentinel and non-numeric cells are excluded; ties keep the
// first-seen server. Empty string means no winner.
func (s *Store) Winner(scenario string) string {
	best := ""
	bestVal := 0.0

	for _, server := range s.Servers {
		cell, ok := s.Cell(server, scenario)
		if !ok {
			continue
		}

		val, ok := metrics.ParseNumeric(cell.RPS)
		if !ok {
			continue
		}

		if val > bestVal {
			bestVal = val
			best = server
		}
	}

	return best
}
