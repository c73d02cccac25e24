package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"30s", 30, true},
		{"500ms", 0.5, true},
		{"10", 10, true},
		{"2m", 120, true},
		{"1h", 3600, true},
		{"250us", 0.00025, true},
		{"1.5s", 1.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"10d", 0, false},
	}

	for _, tt := range tests {
		got, ok := DurationSeconds(tt.input)
		if ok != tt.ok {
			t.Errorf("DurationSeconds(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("DurationSeconds(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateResolvesTimeout(t *testing.T) {
	r := Defaults()
	r.Timeout = "2s"

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if r.TimeoutSeconds != 2.0 {
		t.Errorf("TimeoutSeconds = %v, want 2.0", r.TimeoutSeconds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	r := Defaults()
	r.Protocol = "spdy"
	if err := r.Validate(); err == nil {
		t.Error("expected error for unknown protocol")
	}

	r = Defaults()
	r.Timeout = "soon"
	if err := r.Validate(); err == nil {
		t.Error("expected error for invalid timeout")
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	data := "threads: 8\nduration: 15s\nreference: drogon\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	r := Defaults()
	r.Connections = 123

	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if r.Threads != 8 {
		t.Errorf("threads = %d, want 8", r.Threads)
	}
	if r.Duration != "15s" {
		t.Errorf("duration = %q, want 15s", r.Duration)
	}
	if r.Reference != "drogon" {
		t.Errorf("reference = %q, want drogon", r.Reference)
	}
	if r.Connections != 123 {
		t.Errorf("connections = %d, want untouched 123", r.Connections)
	}
}

func TestProtocolTool(t *testing.T) {
	if ProtocolHTTP1.Tool() != "wrk" {
		t.Error("http1 should map to wrk")
	}
	if ProtocolH2C.Tool() != "h2load" || ProtocolH2TLS.Tool() != "h2load" {
		t.Error("h2 protocols should map to h2load")
	}
	if ProtocolHTTP1.IsH2() {
		t.Error("http1 is not h2")
	}
}
