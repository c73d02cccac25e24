package launch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aeronet-labs/httpbench/catalog"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()

	dir := t.TempDir()

	return &Resolver{
		ScriptDir: dir,
		BuildDir:  dir,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func touch(t *testing.T, path string) {
	t.Helper()

	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestResolvePrebuilt(t *testing.T) {
	r := testResolver(t)
	binary := filepath.Join(r.BuildDir, "aeronet-bench-server")
	touch(t, binary)

	cmd, err := r.Resolve(context.Background(), "aeronet", []string{"--tls"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cmd.Argv[0] != binary {
		t.Errorf("argv[0] = %q, want %q", cmd.Argv[0], binary)
	}
	if !slices.Contains(cmd.Argv, "--tls") {
		t.Errorf("extra args missing: %v", cmd.Argv)
	}
}

func TestResolvePrebuiltMissingBinary(t *testing.T) {
	r := testResolver(t)

	_, err := r.Resolve(context.Background(), "drogon", nil)

	var cfgErr *catalog.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolvePython(t *testing.T) {
	r := testResolver(t)
	touch(t, filepath.Join(r.ScriptDir, "python_server.py"))

	cmd, err := r.Resolve(context.Background(), "python", nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cmd.Argv[0] != "python3" {
		t.Errorf("argv[0] = %q, want python3", cmd.Argv[0])
	}
	if cmd.Dir != r.ScriptDir {
		t.Errorf("dir = %q, want script dir", cmd.Dir)
	}
}

func TestResolveUnknownFailsClosed(t *testing.T) {
	r := testResolver(t)

	if _, err := r.Resolve(context.Background(), "nginx", nil); err == nil {
		t.Error("unknown server must fail closed")
	}
}

func TestBuildAllFiltersUnavailable(t *testing.T) {
	r := testResolver(t)
	touch(t, filepath.Join(r.BuildDir, "aeronet-bench-server"))
	touch(t, filepath.Join(r.ScriptDir, "python_server.py"))

	got := r.BuildAll(context.Background(), []string{"aeronet", "drogon", "python"})
	if !slices.Equal(got, []string{"aeronet", "python"}) {
		t.Errorf("available = %v, want [aeronet python]", got)
	}
}

func TestFindBuildDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AERONET_BUILD_DIR", dir)

	if got := findBuildDir(t.TempDir()); got != dir {
		t.Errorf("findBuildDir = %q, want env override %q", got, dir)
	}
}
