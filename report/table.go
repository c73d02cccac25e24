package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aeronet-labs/httpbench/metrics"
	"github.com/aeronet-labs/httpbench/procmem"
)

const (
	scenarioWidth = 12
	cellWidth     = 14
	winnerWidth   = 10
	memWidth      = 12
)

const winnerMark = " \033[1;32m*\033[0m"

// PrintTables renders the three comparison boxes (throughput, latency,
// transfer) with the winning cell marked.
func (s *Store) PrintTables(w io.Writer) {
	if s.Empty() {
		return
	}

	s.printBox(w, "BENCHMARK RESULTS COMPARISON",
		"(Successful responses/sec - higher is better)",
		func(c Cell) string { return c.RPS }, rpsRank)

	s.printBox(w, "LATENCY COMPARISON",
		"(Timeout-adjusted average - lower is better)",
		func(c Cell) string { return c.Latency }, latencyRank)

	s.printBox(w, "TRANSFER RATE COMPARISON",
		"(Data throughput - higher is better)",
		func(c Cell) string { return c.Transfer }, transferRank)
}

// rank functions convert a cell value into a comparable score where
// higher is always better; ok=false excludes the cell.
type rankFunc func(value string) (float64, bool)

func rpsRank(value string) (float64, bool) {
	return metrics.ParseNumeric(value)
}

func latencyRank(value string) (float64, bool) {
	secs, ok := metrics.LatencyToSeconds(value)
	if !ok {
		return 0, false
	}

	return -secs, true
}

// transferRank parses values like "56.78MB" or "1.2GB/s" into bytes.
func transferRank(value string) (float64, bool) {
	v := strings.TrimSuffix(value, "/s")

	units := []struct {
		suffix string
		scale  float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, u := range units {
		if strings.HasSuffix(v, u.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(v, u.suffix), 64)
			if err != nil {
				return 0, false
			}

			return n * u.scale, true
		}
	}

	return metrics.ParseNumeric(v)
}

func (s *Store) printBox(w io.Writer, title, subtitle string, value func(Cell) string, rank rankFunc) {
	interior := scenarioWidth + 3 + len(s.Servers)*(cellWidth+3) + winnerWidth + 2
	border := strings.Repeat("=", interior)

	fmt.Fprintln(w, border)
	for _, text := range []string{title, subtitle} {
		left := (interior - len(text)) / 2
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", max(0, left)), text)
	}
	fmt.Fprintln(w, border)

	var header strings.Builder
	fmt.Fprintf(&header, " %-*s ", scenarioWidth, "Scenario")
	for _, srv := range s.Servers {
		fmt.Fprintf(&header, "  %-*s ", cellWidth, srv)
	}
	fmt.Fprintf(&header, "  %-*s", winnerWidth, "Winner")
	fmt.Fprintln(w, header.String())
	fmt.Fprintln(w, strings.Repeat("-", interior))

	for _, scenario := range s.Scenarios {
		best := s.bestBy(scenario, value, rank)

		var row strings.Builder
		fmt.Fprintf(&row, " %-*s ", scenarioWidth, scenario)

		for _, srv := range s.Servers {
			display := metrics.Sentinel
			if cell, ok := s.Cell(srv, scenario); ok {
				display = value(cell)
			}

			if srv == best && display != metrics.Sentinel {
				fmt.Fprintf(&row, "  %-*s", cellWidth-1, display)
				row.WriteString(winnerMark + " ")
			} else {
				fmt.Fprintf(&row, "  %-*s ", cellWidth, display)
			}
		}

		fmt.Fprintf(&row, "  %-*s", winnerWidth, orDash(best))
		fmt.Fprintln(w, row.String())
	}

	fmt.Fprintln(w, border)
	fmt.Fprintln(w)
}

// bestBy returns the winning server for scenario under the given value
// accessor and ranking, first-seen order breaking ties.
func (s *Store) bestBy(scenario string, value func(Cell) string, rank rankFunc) string {
	best := ""

	var bestScore float64

	for _, srv := range s.Servers {
		cell, ok := s.Cell(srv, scenario)
		if !ok {
			continue
		}

		score, ok := rank(value(cell))
		if !ok {
			continue
		}

		if best == "" || score > bestScore {
			best = srv
			bestScore = score
		}
	}

	return best
}

// PrintMemoryTable renders the per-pair memory usage box.
func (s *Store) PrintMemoryTable(w io.Writer) {
	rows := s.memoryRows()
	if len(rows) == 0 {
		return
	}

	cols := []string{"Scenario", "Server", "RSS", "Peak", "VMHWM", "VMSize", "Swap"}

	var header strings.Builder
	for i, name := range cols {
		if i > 0 {
			header.WriteString("  ")
		}
		fmt.Fprintf(&header, "%-*s", memWidth, name)
	}

	interior := header.Len() + 2
	border := strings.Repeat("=", interior)

	fmt.Fprintln(w, border)
	for _, text := range []string{"MEMORY USAGE SUMMARY", "(values from /proc/<pid>/status)"} {
		left := (interior - len(text)) / 2
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", max(0, left)), text)
	}
	fmt.Fprintln(w, border)
	fmt.Fprintf(w, " %s\n", header.String())
	fmt.Fprintln(w, strings.Repeat("-", interior))

	for _, row := range rows {
		fmt.Fprintf(w, " %-*s  %-*s  %*s  %*s  %*s  %*s  %*s\n",
			memWidth, row.scenario,
			memWidth, row.server,
			memWidth, formatMemMB(row.stats.RSSKB),
			memWidth, formatMemMB(row.stats.PeakKB),
			memWidth, formatMemMB(row.stats.HWMKB),
			memWidth, formatMemMB(row.stats.VMSizeKB),
			memWidth, formatMemMB(row.stats.VMSwapKB),
		)
	}

	fmt.Fprintln(w, border)
	fmt.Fprintln(w)
}

type memoryRow struct {
	scenario, server string
	stats            *procmem.Stats
}

func (s *Store) memoryRows() []memoryRow {
	var rows []memoryRow

	for _, scenario := range s.Scenarios {
		for _, server := range s.Servers {
			if cell, ok := s.Cell(server, scenario); ok && cell.Memory != nil {
				rows = append(rows, memoryRow{scenario, server, cell.Memory})
			}
		}
	}

	return rows
}

func formatMemMB(kb *int64) string {
	if kb == nil {
		return metrics.Sentinel
	}

	return fmt.Sprintf("%.1fMB", float64(*kb)/1024)
}

func orDash(s string) string {
	if s == "" {
		return metrics.Sentinel
	}

	return s
}

// FormatRPS renders a throughput cell with thousands separators for the
// summary table.
func FormatRPS(value string) string {
	n, ok := metrics.ParseNumeric(value)
	if !ok {
		return value
	}

	return groupThousands(int64(n))
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)

	var out strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(d)
	}

	return out.String()
}
