package report

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aeronet-labs/httpbench/config"
)

// TextLog is the timestamped plain-text results file: a header, one raw
// output block per measured pair, and the summary tables.
type TextLog struct {
	Path string
}

// NewTextLog creates the results file under dir with a timestamped name.
func NewTextLog(dir string, now time.Time) *TextLog {
	name := fmt.Sprintf("benchmark_%s.txt", now.Format("20060102_150405"))

	return &TextLog{Path: filepath.Join(dir, name)}
}

// WriteHeader writes the run description at the top of the log.
func (l *TextLog) WriteHeader(run config.Run) error {
	f, err := os.Create(l.Path)
	if err != nil {
		return fmt.Errorf("create results log: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "HTTP Server Benchmark Results")
	fmt.Fprintln(f, "==============================")
	fmt.Fprintf(f, "Date: %s\n", time.Now().Format(time.ANSIC))
	fmt.Fprintf(f, "Protocol: %s\n", run.Protocol)
	fmt.Fprintf(f, "Tool: %s\n", run.Protocol.Tool())
	fmt.Fprintf(f, "Threads: %d\n", run.Threads)
	fmt.Fprintf(f, "Connections: %d\n", run.Connections)
	fmt.Fprintf(f, "Duration: %s\n", run.Duration)

	if run.Protocol.IsH2() {
		fmt.Fprintf(f, "H2 Streams/conn: %d\n", run.H2Streams)
	}

	fmt.Fprintf(f, "Request timeout: %s\n", run.Timeout)

	if uname, err := exec.Command("uname", "-a").Output(); err == nil {
		fmt.Fprintf(f, "System: %s\n", strings.TrimSpace(string(uname)))
	}

	if cpu := cpuModel(); cpu != "" {
		fmt.Fprintf(f, "CPU: %s\n", cpu)
	}

	fmt.Fprintln(f)

	return nil
}

func cpuModel() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			_, value, _ := strings.Cut(line, ":")
			return strings.TrimSpace(value)
		}
	}

	return ""
}

// AppendBlock appends the raw load-generator output for one pair.
func (l *TextLog) AppendBlock(server, scenario, output string, isError bool) error {
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	tag := ""
	if isError {
		tag = " (ERROR)"
	}

	fmt.Fprintf(f, "=== %s / %s%s ===\n%s\n\n", server, scenario, tag, output)

	return nil
}

// AppendSummaryTable appends the per-scenario winner table.
func (l *TextLog) AppendSummaryTable(store *Store, threads int) error {
	if store.Empty() {
		return nil
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "\n=== SUMMARY TABLE ===")
	fmt.Fprintln(f)

	header := append([]string{"Scenario", "Threads"}, store.Servers...)
	header = append(header, "Winner")

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = fmt.Sprintf("%-14s", h)
	}

	fmt.Fprintln(f, strings.Join(cells, " | "))
	fmt.Fprintln(f, strings.Repeat("-", 17*len(header)))

	for _, scenario := range store.Scenarios {
		row := []string{
			fmt.Sprintf("%-14s", scenario),
			fmt.Sprintf("%-14d", threads),
		}

		for _, server := range store.Servers {
			val := "-"
			if cell, ok := store.Cell(server, scenario); ok {
				val = FormatRPS(cell.RPS)
			}

			row = append(row, fmt.Sprintf("%-14s", val))
		}

		row = append(row, orDash(store.Winner(scenario)))
		fmt.Fprintln(f, strings.Join(row, " | "))
	}

	return nil
}

// AppendMemoryTable appends the memory summary in plain-text form.
func (l *TextLog) AppendMemoryTable(store *Store) error {
	rows := store.memoryRows()
	if len(rows) == 0 {
		return nil
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "\n=== MEMORY USAGE SUMMARY ===")
	fmt.Fprintln(f)
	fmt.Fprintln(f, "Scenario       | Server       | RSS       | Peak      | VMHWM     | VMSize    | Swap      ")
	fmt.Fprintln(f, "---------------|--------------|-----------|-----------|-----------|-----------|-----------")

	for _, row := range rows {
		fmt.Fprintf(f, "%-14s | %-12s | %9s | %9s | %9s | %9s | %9s\n",
			row.scenario, row.server,
			formatMemMB(row.stats.RSSKB),
			formatMemMB(row.stats.PeakKB),
			formatMemMB(row.stats.HWMKB),
			formatMemMB(row.stats.VMSizeKB),
			formatMemMB(row.stats.VMSwapKB),
		)
	}

	return nil
}
