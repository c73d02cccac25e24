package launch

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aeronet-labs/httpbench/catalog"
)

// maxParallelBuilds bounds the worker pool used by BuildAll. Builds are
// independent artifacts; measurements never run through this pool.
const maxParallelBuilds = 3

// BuildAll resolves (and therefore builds) every named server through a
// bounded worker pool. A failed build removes the server from the
// returned available set rather than failing the run.
func (r *Resolver) BuildAll(ctx context.Context, servers []string) []string {
	type outcome struct {
		name string
		ok   bool
	}

	results := make([]outcome, len(servers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBuilds)

	for i, name := range servers {
		i, name := i, name

		g.Go(func() error {
			results[i] = outcome{name: name, ok: r.Available(ctx, name)}
			return nil
		})
	}

	// Workers never return errors; Wait only propagates ctx cancellation.
	_ = g.Wait()

	available := make([]string, 0, len(servers))
	for _, res := range results {
		if res.ok {
			available = append(available, res.name)
		}
	}

	return available
}

func (r *Resolver) ensureGoBuilt(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("go"); err != nil {
		return "", &catalog.ConfigError{
			Kind: "server", Name: "go", Why: "Go toolchain not found",
		}
	}

	source := filepath.Join(r.ScriptDir, "go_server.go")
	if !isFile(source) {
		return "", &catalog.ConfigError{
			Kind: "server", Name: "go", Why: "go_server.go not found",
		}
	}

	binary := filepath.Join(r.ScriptDir, "go-bench-server")
	if isFile(binary) && mtime(binary) >= mtime(source) {
		return binary, nil
	}

	r.Logger.Info("building go server")

	if err := runBuild(ctx, r.ScriptDir, "go", "build", "-o", binary, source); err != nil {
		return "", &catalog.ConfigError{
			Kind: "server", Name: "go",
			Why: fmt.Sprintf("build failed: %v", err),
		}
	}

	return binary, nil
}

func (r *Resolver) ensureRustBuilt(ctx context.Context) (string, error) {
	cargo, err := exec.LookPath("cargo")
	if err != nil {
		return "", &catalog.ConfigError{
			Kind: "server", Name: "rust", Why: "Rust toolchain (cargo) not found",
		}
	}

	crate := filepath.Join(r.ScriptDir, "rust_server")
	if !isFile(filepath.Join(crate, "Cargo.toml")) {
		return "", &catalog.ConfigError{
			Kind: "server", Name: "rust", Why: "rust_server/Cargo.toml not found",
		}
	}

	binary := filepath.Join(crate, "target", "release", "rust-bench-server")
	if !isFile(binary) {
		r.Logger.Info("building rust server (release)")

		if err := runBuild(ctx, crate, cargo, "build", "--release"); err != nil {
			return "", &catalog.ConfigError{
				Kind: "server", Name: "rust",
				Why: fmt.Sprintf("build failed: %v", err),
			}
		}
	}

	if !isFile(binary) {
		return "", &catalog.ConfigError{
			Kind: "server", Name: "rust",
			Why: fmt.Sprintf("binary not found after build: %s", binary),
		}
	}

	return binary, nil
}

// undertowJars is the fixed classpath for the Undertow benchmark
// server. The jars are fetched by the resource setup script; the
// resolver only verifies and compiles.
var undertowJars = []string{
	"undertow-core-2.3.23.Final.jar",
	"xnio-api-3.8.17.Final.jar",
	"xnio-nio-3.8.17.Final.jar",
	"jboss-logging-3.6.2.Final.jar",
	"wildfly-common-2.0.1.jar",
	"jboss-threads-3.9.2.jar",
	"smallrye-common-net-2.16.0.jar",
	"smallrye-common-cpu-2.16.0.jar",
	"smallrye-common-expression-2.16.0.jar",
	"smallrye-common-os-2.16.0.jar",
	"smallrye-common-ref-2.16.0.jar",
	"smallrye-common-constraint-2.16.0.jar",
}

func (r *Resolver) ensureUndertowBuilt(ctx context.Context) (string, string, error) {
	for _, tool := range []string{"java", "javac"} {
		if _, err := exec.LookPath(tool); err != nil {
			return "", "", &catalog.ConfigError{
				Kind: "server", Name: "undertow",
				Why: fmt.Sprintf("%s not found", tool),
			}
		}
	}

	dir := filepath.Join(r.ScriptDir, "undertow_server")

	source := filepath.Join(dir, "UndertowBenchServer.java")
	if !isFile(source) {
		return "", "", &catalog.ConfigError{
			Kind: "server", Name: "undertow",
			Why: "UndertowBenchServer.java not found",
		}
	}

	for _, jar := range undertowJars {
		if !isFile(filepath.Join(dir, jar)) {
			return "", "", &catalog.ConfigError{
				Kind: "server", Name: "undertow",
				Why: fmt.Sprintf("missing dependency jar %s (run the resource setup script)", jar),
			}
		}
	}

	classpath := strings.Join(append([]string{"."}, undertowJars...), ":")

	class := filepath.Join(dir, "UndertowBenchServer.class")
	if !isFile(class) || mtime(source) > mtime(class) {
		r.Logger.Info("compiling undertow server")

		if err := runBuild(ctx, dir, "javac", "-cp", classpath, "UndertowBenchServer.java"); err != nil {
			return "", "", &catalog.ConfigError{
				Kind: "server", Name: "undertow",
				Why: fmt.Sprintf("compilation failed: %v", err),
			}
		}
	}

	return dir, classpath, nil
}
