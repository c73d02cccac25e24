package procmem

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeStatus(t *testing.T, root string, pid, ppid int, rssKB, hwmKB, threads int) {
	t.Helper()

	dir := filepath.Join(root, fmt.Sprint(pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	status := fmt.Sprintf(
		"Name:\tbench-server\nPid:\t%d\nPPid:\t%d\nVmPeak:\t%d kB\nVmSize:\t%d kB\nVmHWM:\t%d kB\nVmRSS:\t%d kB\nVmSwap:\t0 kB\nThreads:\t%d\n",
		pid, ppid, rssKB*2, rssKB*3, hwmKB, rssKB, threads,
	)
	if err := os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSampleSumsDescendants(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, root, 100, 1, 100, 120, 4)  // root process
	writeStatus(t, root, 101, 100, 250, 260, 2) // direct child
	writeStatus(t, root, 102, 101, 50, 60, 1)   // grandchild
	writeStatus(t, root, 999, 1, 9999, 9999, 9) // unrelated process

	stats := Collector{Root: root}.Sample(100)
	if stats == nil {
		t.Fatal("Sample returned nil for live process")
	}

	if stats.Processes != 3 {
		t.Errorf("processes = %d, want 3", stats.Processes)
	}
	if stats.RSSKB == nil || *stats.RSSKB != 400 {
		t.Errorf("rss = %v, want 400", stats.RSSKB)
	}
	if stats.HWMKB == nil || *stats.HWMKB != 440 {
		t.Errorf("hwm = %v, want 440", stats.HWMKB)
	}
	if stats.Threads == nil || *stats.Threads != 7 {
		t.Errorf("threads = %v, want 7", stats.Threads)
	}
}

func TestSampleTwoDescendants(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, root, 10, 1, 0, 0, 1)
	writeStatus(t, root, 11, 10, 100, 100, 1)
	writeStatus(t, root, 12, 10, 250, 250, 1)

	stats := Collector{Root: root}.Sample(10)
	if stats == nil {
		t.Fatal("Sample returned nil")
	}
	if *stats.RSSKB != 350 {
		t.Errorf("rss = %d, want 350", *stats.RSSKB)
	}
}

func TestSampleExitedDescendantExcluded(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, root, 10, 1, 100, 100, 1)
	writeStatus(t, root, 11, 10, 250, 250, 1)

	// Child 11 exits before sampling: remove its status file but leave
	// the directory, as happens when a process is mid-reap.
	if err := os.Remove(filepath.Join(root, "11", "status")); err != nil {
		t.Fatal(err)
	}

	stats := Collector{Root: root}.Sample(10)
	if stats == nil {
		t.Fatal("Sample returned nil")
	}
	if *stats.RSSKB != 100 {
		t.Errorf("rss = %d, want 100 (exited child excluded)", *stats.RSSKB)
	}
	if stats.Processes != 1 {
		t.Errorf("processes = %d, want 1", stats.Processes)
	}
}

func TestSampleGoneRoot(t *testing.T) {
	root := t.TempDir()
	if stats := (Collector{Root: root}).Sample(4242); stats != nil {
		t.Errorf("want nil for missing root process, got %+v", stats)
	}
}

func TestSampleMissingCountersStayNil(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "20")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Kernel threads expose no Vm* fields at all.
	status := "Name:\tkthread\nPid:\t20\nPPid:\t1\nThreads:\t1\n"
	if err := os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0o644); err != nil {
		t.Fatal(err)
	}

	stats := Collector{Root: root}.Sample(20)
	if stats == nil {
		t.Fatal("Sample returned nil")
	}
	if stats.RSSKB != nil {
		t.Errorf("rss = %v, want nil (not observed)", stats.RSSKB)
	}
	if stats.Threads == nil || *stats.Threads != 1 {
		t.Errorf("threads = %v, want 1", stats.Threads)
	}
}

func TestKBToMB(t *testing.T) {
	if got := KBToMB(nil); got != nil {
		t.Errorf("KBToMB(nil) = %v, want nil", got)
	}

	kb := int64(1536)
	got := KBToMB(&kb)
	if got == nil || *got != 1.5 {
		t.Errorf("KBToMB(1536) = %v, want 1.5", got)
	}
}
