package metrics

import "testing"

func TestSuccessRPS(t *testing.T) {
	got := SuccessRPS("101.23", 1000, 50, 10)
	if got != "95.00" {
		t.Errorf("SuccessRPS = %q, want 95.00", got)
	}
}

func TestSuccessRPSFallsBackWithoutDuration(t *testing.T) {
	got := SuccessRPS("101.23", 1000, 50, 0)
	if got != "101.23" {
		t.Errorf("SuccessRPS = %q, want raw fallback 101.23", got)
	}
}

func TestSuccessRPSClampsNegative(t *testing.T) {
	got := SuccessRPS("1.00", 10, 500, 10)
	if got != "0.00" {
		t.Errorf("SuccessRPS = %q, want clamped 0.00", got)
	}
}

func TestAdjustedLatency(t *testing.T) {
	// (0.1*950 + 2.0*50) / 1000 = 0.195s -> 195.00ms
	got := AdjustedLatency("100ms", 950, 50, 2.0)
	if got != "195.00ms" {
		t.Errorf("AdjustedLatency = %q, want 195.00ms", got)
	}
}

func TestAdjustedLatencyPassthroughWithoutTimeouts(t *testing.T) {
	got := AdjustedLatency("100ms", 950, 0, 2.0)
	if got != "100ms" {
		t.Errorf("AdjustedLatency = %q, want untouched 100ms", got)
	}
}

func TestAdjustedLatencySentinelPassthrough(t *testing.T) {
	if got := AdjustedLatency(Sentinel, 0, 10, 2.0); got != Sentinel {
		t.Errorf("AdjustedLatency = %q, want sentinel", got)
	}
}

func TestAdjustedLatencyUnparseablePassthrough(t *testing.T) {
	if got := AdjustedLatency("fast", 10, 10, 2.0); got != "fast" {
		t.Errorf("AdjustedLatency = %q, want passthrough", got)
	}
}

func TestAdjustedLatencyCrossesUnitBoundary(t *testing.T) {
	// All requests timed out at 2s: adjusted collapses to 2.00s.
	got := AdjustedLatency("500us", 0, 10, 2.0)
	if got != "2.00s" {
		t.Errorf("AdjustedLatency = %q, want 2.00s", got)
	}
}

func TestLatencyToSeconds(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"100ms", 0.1, true},
		{"250us", 0.00025, true},
		{"1.5s", 1.5, true},
		{"100MS", 0.1, true},
		{"-", 0, false},
		{"12", 0, false},
		{"1m", 0, false},
	}

	for _, tt := range tests {
		got, ok := LatencyToSeconds(tt.input)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LatencyToSeconds(%q) = %v,%v want %v,%v",
				tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{2.5, "2.50s"},
		{1.0, "1.00s"},
		{0.195, "195.00ms"},
		{0.001, "1.00ms"},
		{0.000999, "999.00us"},
		{0.00025, "250.00us"},
	}

	for _, tt := range tests {
		if got := FormatLatency(tt.seconds); got != tt.want {
			t.Errorf("FormatLatency(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseNumeric(t *testing.T) {
	if v, ok := ParseNumeric("12,345.67"); !ok || v != 12345.67 {
		t.Errorf("ParseNumeric comma form = %v,%v", v, ok)
	}
	if _, ok := ParseNumeric(Sentinel); ok {
		t.Error("sentinel must not parse")
	}
	if _, ok := ParseNumeric(""); ok {
		t.Error("empty must not parse")
	}
}
