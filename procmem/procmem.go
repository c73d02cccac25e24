// Package procmem samples the memory footprint of a process tree by
// reading /proc/<pid>/status for a root process and every live
// descendant, summing the Vm* counters element-wise. Multi-process
// servers (prefork workers, JVM children) are therefore measured as a
// whole rather than by their supervisor alone.
package procmem

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Stats holds summed memory counters in kilobytes. A nil field means
// the counter was not observed in any scanned process, not zero.
type Stats struct {
	RSSKB     *int64
	PeakKB    *int64
	HWMKB     *int64
	VMSizeKB  *int64
	VMSwapKB  *int64
	Threads   *int64
	Processes int // live descendants included in the sums, root included
}

// Collector reads process introspection data from a proc filesystem.
// Root defaults to /proc; tests point it at a fixture tree.
type Collector struct {
	Root string
}

func (c Collector) root() string {
	if c.Root == "" {
		return "/proc"
	}

	return c.Root
}

// Sample returns a point-in-time aggregate for pid and its transitive
// descendants, or nil if the root process is already gone. Descendants
// that exit between the scan and the read are skipped.
func (c Collector) Sample(pid int) *Stats {
	if _, err := os.Stat(c.statusPath(pid)); err != nil {
		return nil
	}

	parents := c.parentMap()
	agg := &Stats{}

	for _, p := range descendants(pid, parents) {
		text, err := os.ReadFile(c.statusPath(p))
		if err != nil {
			continue
		}

		agg.Processes++
		accumulate(agg, string(text))
	}

	return agg
}

func (c Collector) statusPath(pid int) string {
	return filepath.Join(c.root(), strconv.Itoa(pid), "status")
}

// parentMap scans every numeric proc entry and returns pid -> ppid.
func (c Collector) parentMap() map[int]int {
	entries, err := os.ReadDir(c.root())
	if err != nil {
		return nil
	}

	parents := make(map[int]int, len(entries))

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		text, err := os.ReadFile(c.statusPath(pid))
		if err != nil {
			continue
		}

		if ppid, ok := statusInt(string(text), "PPid"); ok {
			parents[pid] = int(ppid)
		}
	}

	return parents
}

// descendants returns pid plus every transitive child found in parents.
func descendants(pid int, parents map[int]int) []int {
	seen := map[int]bool{}
	stack := []int{pid}

	var out []int

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[cur] {
			continue
		}

		seen[cur] = true
		out = append(out, cur)

		for child, parent := range parents {
			if parent == cur && !seen[child] {
				stack = append(stack, child)
			}
		}
	}

	return out
}

func accumulate(agg *Stats, status string) {
	for _, line := range strings.Split(status, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch key {
		case "VmRSS":
			addKB(&agg.RSSKB, value)
		case "VmPeak":
			addKB(&agg.PeakKB, value)
		case "VmHWM":
			addKB(&agg.HWMKB, value)
		case "VmSize":
			addKB(&agg.VMSizeKB, value)
		case "VmSwap":
			addKB(&agg.VMSwapKB, value)
		case "Threads":
			if n, ok := firstInt(value); ok {
				*orZero(&agg.Threads) += n
			}
		}
	}
}

func addKB(field **int64, value string) {
	if n, ok := firstInt(value); ok {
		*orZero(field) += n
	}
}

// orZero returns the pointed-to value, allocating a zero first if the
// field has never been observed.
func orZero(field **int64) *int64 {
	if *field == nil {
		*field = lo.ToPtr(int64(0))
	}

	return *field
}

// statusInt finds key in a /proc status text and parses its integer
// value, e.g. statusInt(text, "PPid") for a "PPid:\t42" line.
func statusInt(status, key string) (int64, bool) {
	for _, line := range strings.Split(status, "\n") {
		k, value, ok := strings.Cut(line, ":")
		if !ok || k != key {
			continue
		}

		return firstInt(value)
	}

	return 0, false
}

// firstInt parses the leading integer of a status value like "1234 kB".
func firstInt(value string) (int64, bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// KBToMB converts a nullable kilobyte counter to megabytes rounded to
// three decimals, for the JSON summary.
func KBToMB(kb *int64) *float64 {
	if kb == nil {
		return nil
	}

	mb := float64(*kb) / 1024.0

	return lo.ToPtr(math.Round(mb*1000) / 1000)
}
