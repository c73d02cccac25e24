package loadgen

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWrkArgs(t *testing.T) {
	spec := WrkSpec{
		Threads:     4,
		Connections: 200,
		Duration:    "30s",
		Timeout:     "10s",
		LuaScript:   "lua/headers_stress.lua",
		URL:         "http://127.0.0.1:8080/headers",
	}

	want := []string{
		"wrk", "-t4", "-c200", "-d30s", "--timeout=10s",
		"-s", "lua/headers_stress.lua", "http://127.0.0.1:8080/headers",
	}
	if got := spec.Args(); !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestWrkProcessTimeout(t *testing.T) {
	spec := WrkSpec{Duration: "30s"}
	if got := spec.ProcessTimeout(); got != 90*time.Second {
		t.Errorf("ProcessTimeout = %v, want 90s", got)
	}
}

func TestH2LoadArgs(t *testing.T) {
	spec := H2LoadSpec{
		Connections:     100,
		Threads:         4,
		Streams:         10,
		DurationSeconds: 30,
		BodyFile:        "h2_data/h2_body_1k.gz",
		ExtraHeaders:    []string{"Content-Encoding: gzip"},
		ALPN:            true,
		URLs:            []string{"https://127.0.0.1:8080/ping"},
	}

	got := spec.Args()
	want := []string{
		"h2load", "-c100", "-t4", "-m10", "-D30", "-T40s",
		"-d", "h2_data/h2_body_1k.gz",
		"-H", "Content-Encoding: gzip",
		"--alpn-list=h2",
		"https://127.0.0.1:8080/ping",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestH2LoadArgsMultiURI(t *testing.T) {
	spec := H2LoadSpec{
		Connections: 50, Threads: 2, Streams: 10, DurationSeconds: 10,
		URLs: []string{"http://h/a", "http://h/b", "http://h/c"},
	}

	got := spec.Args()
	if !slices.Equal(got[len(got)-3:], spec.URLs) {
		t.Errorf("URLs not appended in order: %v", got)
	}
}

func TestWithConnections(t *testing.T) {
	argv := []string{"h2load", "-c100", "-t4", "-m10", "http://h/"}
	got := withConnections(argv, 25)

	if got[1] != "-c25" {
		t.Errorf("got %v", got)
	}
	if argv[1] != "-c100" {
		t.Error("withConnections must not mutate the original argv")
	}
}

// crashingExec scripts a sequence of (output, crashed) responses and
// records each invocation's -c value.
type crashingExec struct {
	responses []struct {
		output  string
		crashed bool
	}
	calls     int
	connsSeen []string
}

func (c *crashingExec) run(argv []string, _ time.Duration) (string, bool) {
	for _, tok := range argv {
		if strings.HasPrefix(tok, "-c") {
			c.connsSeen = append(c.connsSeen, tok)
			break
		}
	}

	resp := c.responses[min(c.calls, len(c.responses)-1)]
	c.calls++

	return resp.output, resp.crashed
}

func h2Output(succeeded int) string {
	return fmt.Sprintf(
		"finished in 10.00s, %d.00 req/s, 1.00MB/s\nrequests: %d total, %d started, %d done, %d succeeded, 0 failed, 0 errored, 0 timeout\n",
		succeeded/10, succeeded, succeeded, succeeded, succeeded,
	)
}

func TestRunH2NoCrashNoRetry(t *testing.T) {
	exec := &crashingExec{responses: []struct {
		output  string
		crashed bool
	}{
		{h2Output(1000), false},
	}}

	spec := H2LoadSpec{Connections: 64, Threads: 2, Streams: 10, DurationSeconds: 10, URLs: []string{"http://h/"}}

	out, crashed := RunH2(exec.run, spec, testLogger())
	if crashed {
		t.Error("crashed = true for a clean run")
	}
	if exec.calls != 1 {
		t.Errorf("calls = %d, want 1", exec.calls)
	}
	if h2Succeeded(out) != 1000 {
		t.Errorf("unexpected output kept: %q", out)
	}
}

func TestRunH2LadderSteps(t *testing.T) {
	// Original 64 always crashes: the ladder tries 16 (64/4) then
	// 4 (64/16) before giving up.
	exec := &crashingExec{responses: []struct {
		output  string
		crashed bool
	}{
		{h2Output(10), true},
		{h2Output(20), true},
		{h2Output(5), true},
	}}

	spec := H2LoadSpec{Connections: 64, Threads: 2, Streams: 10, DurationSeconds: 10, URLs: []string{"http://h/"}}

	out, crashed := RunH2(exec.run, spec, testLogger())
	if !crashed {
		t.Error("crashed = false when every attempt crashed")
	}

	want := []string{"-c64", "-c16", "-c4"}
	if !slices.Equal(exec.connsSeen, want) {
		t.Errorf("ladder = %v, want %v", exec.connsSeen, want)
	}

	// The 16-connection attempt produced the most successes.
	if h2Succeeded(out) != 20 {
		t.Errorf("kept attempt with %d successes, want 20", h2Succeeded(out))
	}
}

func TestRunH2FirstRetrySucceeds(t *testing.T) {
	exec := &crashingExec{responses: []struct {
		output  string
		crashed bool
	}{
		{h2Output(10), true},
		{h2Output(500), false},
	}}

	spec := H2LoadSpec{Connections: 64, Threads: 2, Streams: 10, DurationSeconds: 10, URLs: []string{"http://h/"}}

	out, crashed := RunH2(exec.run, spec, testLogger())
	if crashed {
		t.Error("crashed = true after a successful retry")
	}
	if exec.calls != 2 {
		t.Errorf("calls = %d, want 2 (no further retry after success)", exec.calls)
	}
	if h2Succeeded(out) != 500 {
		t.Errorf("retry output not kept: %q", out)
	}
}

func TestRunH2LadderSkipsNonReducingRetries(t *testing.T) {
	// With 4 original connections, 4/4 floored at 4 does not reduce;
	// the ladder must stop immediately.
	exec := &crashingExec{responses: []struct {
		output  string
		crashed bool
	}{
		{h2Output(0), true},
	}}

	spec := H2LoadSpec{Connections: 4, Threads: 1, Streams: 1, DurationSeconds: 10, URLs: []string{"http://h/"}}

	_, crashed := RunH2(exec.run, spec, testLogger())
	if !crashed {
		t.Error("crashed = false")
	}
	if exec.calls != 1 {
		t.Errorf("calls = %d, want 1 (no non-reducing retries)", exec.calls)
	}
}

func TestExecCapturesOutputOnFailure(t *testing.T) {
	out, crashed := Exec([]string{"sh", "-c", "echo partial results; exit 3"}, 5*time.Second)
	if !crashed {
		t.Error("crashed = false for exit 3")
	}
	if !strings.Contains(out, "partial results") {
		t.Errorf("output lost on failure: %q", out)
	}
}

func TestExecTimeoutKills(t *testing.T) {
	start := time.Now()
	out, crashed := Exec([]string{"sh", "-c", "echo started; sleep 30"}, 300*time.Millisecond)
	if !crashed {
		t.Error("crashed = false for timed-out process")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if !strings.Contains(out, "started") {
		t.Errorf("pre-timeout output lost: %q", out)
	}
}

func TestCheckTool(t *testing.T) {
	if err := CheckTool("sh"); err != nil {
		t.Errorf("sh should be present: %v", err)
	}
	if err := CheckTool("definitely-not-a-tool-xyz"); err == nil {
		t.Error("expected error for missing tool")
	}
}
