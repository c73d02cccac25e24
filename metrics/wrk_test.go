package metrics

import (
	"reflect"
	"testing"
)

const sampleWrkOutput = `Running 30s test @ http://127.0.0.1:8080/headers
  4 threads and 200 connections
  Thread Stats   Avg      Stdev     Max   +/- Stdev
    Latency   100.00ms    2.11ms  250.91ms   70.25%
    Req/Sec     3.10k   316.16     4.10k    79.50%
  1000 requests in 10.00s, 151.96MB read
  Non-2xx or 3xx responses: 7
Requests/sec:  12345.67
Transfer/sec:     15.19MB
Errors (connect): 1
Errors (read): 2
Errors (write): 0
Errors (timeout): 50
`

func TestParseWrk(t *testing.T) {
	m := ParseWrk(sampleWrkOutput)

	if m.RPS != "12345.67" {
		t.Errorf("rps = %q, want 12345.67", m.RPS)
	}
	if m.Latency != "100.00ms" {
		t.Errorf("latency = %q, want 100.00ms", m.Latency)
	}
	if m.Transfer != "15.19MB" {
		t.Errorf("transfer = %q, want 15.19MB", m.Transfer)
	}
	if m.TotalRequests != 1000 {
		t.Errorf("total = %d, want 1000", m.TotalRequests)
	}
	if m.DurationSeconds != 10.0 {
		t.Errorf("duration = %v, want 10.0", m.DurationSeconds)
	}
	if m.ErrConnect != 1 || m.ErrRead != 2 || m.ErrWrite != 0 || m.ErrTimeout != 50 {
		t.Errorf("errors = %d/%d/%d/%d, want 1/2/0/50",
			m.ErrConnect, m.ErrRead, m.ErrWrite, m.ErrTimeout)
	}
	if !m.AnyErrors() {
		t.Error("AnyErrors should be true")
	}
}

func TestParseWrkNon2xxCount(t *testing.T) {
	m := ParseWrk("Non-2xx responses: 42\nRequests/sec: 10.00\n")
	if m.Non2xx != 42 {
		t.Errorf("non2xx = %d, want 42", m.Non2xx)
	}
}

func TestParseWrkFirstLatencyWins(t *testing.T) {
	out := "    Latency   1.23ms   0.5ms\n    Latency   9.99ms   0.5ms\n"
	m := ParseWrk(out)
	if m.Latency != "1.23ms" {
		t.Errorf("latency = %q, want first occurrence 1.23ms", m.Latency)
	}
}

func TestParseWrkEmptyOutput(t *testing.T) {
	m := ParseWrk("")
	if m.RPS != Sentinel || m.Latency != Sentinel || m.Transfer != Sentinel {
		t.Errorf("empty output should yield sentinels, got %+v", m)
	}
	if m.AnyErrors() {
		t.Error("empty output has no errors")
	}
}

func TestParseWrkMangledErrorLineCountsAsOne(t *testing.T) {
	m := ParseWrk("Errors (timeout): lots\n")
	if m.ErrTimeout != 1 {
		t.Errorf("mangled timeout line = %d, want 1", m.ErrTimeout)
	}
}

func TestParseWrkIdempotent(t *testing.T) {
	a := ParseWrk(sampleWrkOutput)
	b := ParseWrk(sampleWrkOutput)
	if !reflect.DeepEqual(a, b) {
		t.Error("parsing the same text twice must yield identical metrics")
	}
}
