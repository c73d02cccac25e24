package metrics

import (
	"reflect"
	"testing"
)

const sampleH2LoadOutput = `starting benchmark...
spawning thread #0: 25 total client(s). Duration 10 sec.
finished in 10.01s, 12345.67 req/s, 56.78MB/s
requests: 123456 total, 123456 started, 123456 done, 123400 succeeded, 56 failed, 3 errored, 12 timeout
status codes: 123400 2xx, 4 3xx, 12 4xx, 40 5xx
traffic: 567.89MB (595492864) total, 12.34MB (12939428) headers (space savings 95.00%), 543.21MB (569610240) data
time for request:      123.45us      8.91ms      234.56us      101.23us    94.32%
time for connect:      1.23ms        4.56ms      2.34ms        0.78ms      88.00%
req/s           :     1234.56       5678.90     2345.67       111.21      90.00%
`

func TestParseH2Load(t *testing.T) {
	m := ParseH2Load(sampleH2LoadOutput)

	if m.RPS != "12345.67" {
		t.Errorf("rps = %q, want 12345.67", m.RPS)
	}
	if m.Transfer != "56.78MB/s" {
		t.Errorf("transfer = %q, want 56.78MB/s", m.Transfer)
	}
	if m.DurationSeconds != 10.01 {
		t.Errorf("duration = %v, want 10.01", m.DurationSeconds)
	}
	if m.TotalRequests != 123456 {
		t.Errorf("total = %d, want 123456", m.TotalRequests)
	}
	if m.Succeeded != 123400 {
		t.Errorf("succeeded = %d, want 123400", m.Succeeded)
	}
	if m.Failed != 56 || m.Errored != 3 || m.Timeout != 12 {
		t.Errorf("failed/errored/timeout = %d/%d/%d, want 56/3/12",
			m.Failed, m.Errored, m.Timeout)
	}
	if m.Non2xx != 56 {
		t.Errorf("non2xx = %d, want 4+12+40=56", m.Non2xx)
	}
	if m.Latency != "234.56us" {
		t.Errorf("latency = %q, want mean 234.56us", m.Latency)
	}
	if m.TotalErrors() != 56+3+12+56 {
		t.Errorf("total errors = %d", m.TotalErrors())
	}
}

func TestParseH2LoadEmpty(t *testing.T) {
	m := ParseH2Load("h2load: aborted\n")
	if m.RPS != Sentinel || m.Latency != Sentinel {
		t.Errorf("want sentinels for crash-only output, got %+v", m)
	}
	if m.Succeeded != 0 {
		t.Errorf("succeeded = %d, want 0", m.Succeeded)
	}
}

func TestParseH2LoadIdempotent(t *testing.T) {
	a := ParseH2Load(sampleH2LoadOutput)
	b := ParseH2Load(sampleH2LoadOutput)
	if !reflect.DeepEqual(a, b) {
		t.Error("parsing the same text twice must yield identical metrics")
	}
}
