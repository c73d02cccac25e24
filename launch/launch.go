// Package launch resolves server identifiers into runnable commands,
// building the target first when its toolchain requires it. Resolution
// is a strategy map keyed by server name; unknown identifiers fail
// closed with a catalog.ConfigError.
package launch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/aeronet-labs/httpbench/catalog"
)

// Command is a resolved server launch: argv plus working directory.
// Dir may be empty, meaning the resolver's script directory.
type Command struct {
	Argv []string
	Dir  string
}

// Resolver locates and builds server executables.
type Resolver struct {
	// ScriptDir holds the benchmark scripts, lua files and generated
	// resources; also the default working directory for servers.
	ScriptDir string
	// BuildDir holds prebuilt C++ benchmark server binaries.
	BuildDir string
	Logger   *slog.Logger
}

// prebuiltServers are compiled ahead of time by the C++ build tree and
// only looked up, never built here.
var prebuiltServers = map[string]bool{
	"aeronet": true,
	"drogon":  true,
	"pistache": true,
	"crow":    true,
}

// NewResolver discovers the build directory (honoring AERONET_BUILD_DIR)
// and returns a resolver rooted at scriptDir.
func NewResolver(scriptDir string, logger *slog.Logger) *Resolver {
	return &Resolver{
		ScriptDir: scriptDir,
		BuildDir:  findBuildDir(scriptDir),
		Logger:    logger,
	}
}

func findBuildDir(scriptDir string) string {
	if env := os.Getenv("AERONET_BUILD_DIR"); env != "" {
		if abs, err := filepath.Abs(env); err == nil && isDir(abs) {
			return abs
		}
	}

	candidates := []string{
		"../../build-pages/benchmarks/scripted-servers",
		"../../build-release/benchmarks/scripted-servers",
		"../../build/benchmarks/scripted-servers",
		"../build-release/benchmarks/scripted-servers",
		"../build/benchmarks/scripted-servers",
	}
	for _, rel := range candidates {
		cand := filepath.Join(scriptDir, rel)
		if abs, err := filepath.Abs(cand); err == nil && isDir(abs) {
			return abs
		}
	}

	return scriptDir
}

// Resolve returns the launch command for server, running its build step
// first when needed. extraArgs are appended to the server argv.
func (r *Resolver) Resolve(ctx context.Context, server string, extraArgs []string) (Command, error) {
	if prebuiltServers[server] {
		binary := filepath.Join(r.BuildDir, server+"-bench-server")
		if !isFile(binary) {
			return Command{}, &catalog.ConfigError{
				Kind: "server", Name: server,
				Why: fmt.Sprintf("binary not found: %s", binary),
			}
		}

		return Command{Argv: append([]string{binary}, extraArgs...)}, nil
	}

	switch server {
	case "go":
		bin, err := r.ensureGoBuilt(ctx)
		if err != nil {
			return Command{}, err
		}

		return Command{Argv: append([]string{bin}, extraArgs...), Dir: filepath.Dir(bin)}, nil

	case "rust":
		bin, err := r.ensureRustBuilt(ctx)
		if err != nil {
			return Command{}, err
		}

		return Command{Argv: append([]string{bin}, extraArgs...), Dir: filepath.Dir(bin)}, nil

	case "undertow":
		dir, classpath, err := r.ensureUndertowBuilt(ctx)
		if err != nil {
			return Command{}, err
		}

		argv := append([]string{"java", "-cp", classpath, "UndertowBenchServer"}, extraArgs...)

		return Command{Argv: argv, Dir: dir}, nil

	case "python":
		script := filepath.Join(r.ScriptDir, "python_server.py")
		if !isFile(script) {
			return Command{}, &catalog.ConfigError{
				Kind: "server", Name: server, Why: "python_server.py not found",
			}
		}

		argv := append([]string{"python3", script}, extraArgs...)

		return Command{Argv: argv, Dir: filepath.Dir(script)}, nil
	}

	return Command{}, &catalog.ConfigError{Kind: "server", Name: server}
}

// Available reports whether server can be resolved (binary present or
// build succeeds), logging the reason when it cannot.
func (r *Resolver) Available(ctx context.Context, server string) bool {
	if _, err := r.Resolve(ctx, server, nil); err != nil {
		r.Logger.Info("server unavailable",
			slog.String("server", server),
			slog.String("reason", err.Error()),
		)

		return false
	}

	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func mtime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return info.ModTime().UnixNano()
}

func runBuild(ctx context.Context, dir string, argv ...string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
