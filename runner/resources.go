package runner

import (
	"compress/gzip"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/aeronet-labs/httpbench/catalog"
	"github.com/aeronet-labs/httpbench/config"
)

// PrepareResources sets up everything the selected scenarios need
// before the first server starts: static test files and TLS material
// via the repo's setup script, and the POST body files h2load uploads.
func PrepareResources(scriptDir string, scenarios []string, protocol config.Protocol, logger *slog.Logger) error {
	needsTLS := catalog.NeedsTLS(scenarios) || protocol == config.ProtocolH2TLS

	if catalog.NeedsStatic(scenarios) || needsTLS {
		if err := runSetupScript(scriptDir, logger); err != nil {
			return err
		}
	}

	if protocol.IsH2() {
		if err := prepareH2BodyFiles(scriptDir); err != nil {
			return err
		}
	}

	return nil
}

// runSetupScript delegates static/TLS asset generation to the repo's
// setup script when one exists. Its absence is a warning, not an
// error: the affected scenarios will simply fail readiness later.
func runSetupScript(scriptDir string, logger *slog.Logger) error {
	var argv []string

	if py := filepath.Join(scriptDir, "setup_bench_resources.py"); isFile(py) {
		argv = []string{"python3", py, scriptDir}
	} else if sh := filepath.Join(scriptDir, "setup_bench_resources.sh"); isFile(sh) {
		argv = []string{"bash", sh, scriptDir}
	}

	if argv == nil {
		logger.Warn("setup_bench_resources.{py|sh} not found; static/tls scenarios may fail")
		return nil
	}

	logger.Info("setting up benchmark resources", slog.String("script", argv[1]))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("resource setup failed: %w", err)
	}

	return nil
}

// EnsureStaticFiles creates the payloads served by the files scenario.
// The files are sparse; only their size matters to the benchmark.
func EnsureStaticFiles(scriptDir string, logger *slog.Logger) error {
	staticDir := filepath.Join(scriptDir, "static")
	if err := os.MkdirAll(staticDir, 0o755); err != nil {
		return fmt.Errorf("create static dir: %w", err)
	}

	files := []struct {
		name string
		size int64
	}{
		{"large.bin", 25 * 1024 * 1024},
		{"medium.bin", 1 * 1024 * 1024},
	}

	for _, f := range files {
		target := filepath.Join(staticDir, f.name)
		if isFile(target) {
			continue
		}

		logger.Info("creating static test file",
			slog.String("file", f.name),
			slog.Int64("bytes", f.size),
		)

		if err := createSparse(target, f.size); err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}
	}

	return nil
}

func createSparse(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Truncate(size)
}

// prepareH2BodyFiles creates the upload payloads for the h2load POST
// scenarios: a 1KB random body and its gzip form.
func prepareH2BodyFiles(scriptDir string) error {
	dataDir := filepath.Join(scriptDir, "h2_data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create h2_data dir: %w", err)
	}

	body := make([]byte, 1024)
	if _, err := rand.Read(body); err != nil {
		return fmt.Errorf("generate body payload: %w", err)
	}

	binPath := filepath.Join(dataDir, "h2_body_1k.bin")
	if !isFile(binPath) {
		if err := os.WriteFile(binPath, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", binPath, err)
		}
	}

	gzPath := filepath.Join(dataDir, "h2_body_1k.gz")
	if !isFile(gzPath) {
		if err := writeGzip(gzPath, body); err != nil {
			return fmt.Errorf("write %s: %w", gzPath, err)
		}
	}

	return nil
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// certPaths returns the TLS material generated by the setup script,
// reporting ok only when both files exist.
func certPaths(scriptDir string) (cert, key string, ok bool) {
	certsDir := filepath.Join(scriptDir, "certs")
	cert = filepath.Join(certsDir, "server.crt")
	key = filepath.Join(certsDir, "server.key")

	return cert, key, isFile(cert) && isFile(key)
}
