package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aeronet-labs/httpbench/catalog"
	"github.com/aeronet-labs/httpbench/config"
	"github.com/aeronet-labs/httpbench/lifecycle"
	"github.com/aeronet-labs/httpbench/loadgen"
	"github.com/aeronet-labs/httpbench/metrics"
	"github.com/aeronet-labs/httpbench/report"
)

// runServerSuiteH2 measures the selected HTTP/2 scenarios against one
// server through h2load. The server is launched in HTTP/2 mode, with
// TLS material added for h2-tls runs; the shared warm-then-measure
// structure mirrors the HTTP/1.1 suite.
func (r *Runner) runServerSuiteH2(ctx context.Context, server string) {
	srv, ok := catalog.LookupServer(server)
	if !ok {
		return
	}

	r.Logger.Info("testing server",
		slog.String("server", server), slog.String("protocol", string(r.Run.Protocol)))

	normal, special := splitRestart(r.Scenarios, true)

	useTLS := r.Run.Protocol == config.ProtocolH2TLS

	launchArgs := []string{"--h2"}
	if useTLS {
		launchArgs = append(launchArgs, "--tls")
		if cert, key, ok := certPaths(r.Resolver.ScriptDir); ok {
			launchArgs = append(launchArgs, "--cert", cert, "--key", key)
		}
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	opts := lifecycle.StartOptions{
		Scheme:   scheme,
		Insecure: useTLS,
		H2C:      r.Run.Protocol == config.ProtocolH2C,
	}

	if len(normal) > 0 {
		cmd, err := r.Resolver.Resolve(ctx, server, launchArgs)
		if err == nil && r.Manager.Start(server, srv.Port, cmd, opts) {
			for _, name := range normal {
				r.runH2Pair(server, mustH2Scenario(name), true)
			}

			for _, name := range normal {
				r.runH2Pair(server, mustH2Scenario(name), false)
			}

			r.Manager.Stop(server)
			r.settle()
		} else {
			why := "server failed to start"
			if err != nil {
				why = err.Error()
			}

			for _, name := range normal {
				r.recordUnavailable(server, name, why)
			}
		}
	}

	for _, name := range special {
		sc := mustH2Scenario(name)

		if sc.RequiresStatic {
			if err := EnsureStaticFiles(r.Resolver.ScriptDir, r.Logger); err != nil {
				r.recordUnavailable(server, name, err.Error())
				continue
			}
		}

		extra := append([]string{}, launchArgs...)
		extra = append(extra, h2ScenarioServerArgs(r.Resolver.ScriptDir, sc)...)

		cmd, err := r.Resolver.Resolve(ctx, server, extra)
		if err != nil {
			r.recordUnavailable(server, name, err.Error())
			continue
		}

		if !r.Manager.Start(server, srv.Port, cmd, opts) {
			r.recordUnavailable(server, name, "server failed to start")
			continue
		}

		r.runH2Pair(server, sc, true)
		r.runH2Pair(server, sc, false)
		r.Manager.Stop(server)
		r.settle()
	}
}

func mustH2Scenario(name string) catalog.H2Scenario {
	sc, _ := catalog.LookupH2Scenario(name)
	return sc
}

// h2ScenarioServerArgs builds the extra launch arguments for
// restart-requiring HTTP/2 scenarios.
func h2ScenarioServerArgs(scriptDir string, sc catalog.H2Scenario) []string {
	var args []string

	staticDir := filepath.Join(scriptDir, "static")
	if sc.RequiresStatic && isDir(staticDir) {
		args = append(args, "--static", staticDir)
	}

	if sc.Name == "routing" {
		args = append(args, "--routes", "1000")
	}

	return args
}

func (r *Runner) h2Spec(server string, sc catalog.H2Scenario, warmup bool) loadgen.H2LoadSpec {
	srv, _ := catalog.LookupServer(server)
	useTLS := r.Run.Protocol == config.ProtocolH2TLS

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	base := fmt.Sprintf("%s://127.0.0.1:%d", scheme, srv.Port)

	var urls []string
	if sc.Name == "mixed" {
		for _, ep := range catalog.H2MixedEndpoints {
			urls = append(urls, base+ep)
		}
	} else {
		urls = []string{base + sc.Endpoint}
	}

	durStr := r.Run.Duration
	fallback := 30.0
	if warmup {
		durStr = r.Run.Warmup
		fallback = 5.0
	}

	secs, ok := config.DurationSeconds(durStr)
	if !ok {
		secs = fallback
	}

	conns := r.Run.Connections
	if sc.Connections > 0 {
		conns = sc.Connections
	}

	streams := r.Run.H2Streams
	if sc.Streams > 0 {
		streams = sc.Streams
	}

	bodyFile := ""
	if sc.BodyFile != "" {
		path := filepath.Join(r.Resolver.ScriptDir, "h2_data", sc.BodyFile)
		if isFile(path) {
			bodyFile = path
		}
	}

	return loadgen.H2LoadSpec{
		Connections:     conns,
		Threads:         r.Run.Threads,
		Streams:         streams,
		DurationSeconds: secs,
		BodyFile:        bodyFile,
		ExtraHeaders:    sc.ExtraHeaders,
		ALPN:            useTLS,
		URLs:            urls,
	}
}

func (r *Runner) runH2Pair(server string, sc catalog.H2Scenario, warmup bool) {
	spec := r.h2Spec(server, sc, warmup)

	if warmup {
		r.Logger.Info("warm-up",
			slog.String("server", server), slog.String("scenario", sc.Name))
		loadgen.Warmup(r.exec(), spec.Args(), spec.ProcessTimeout(), r.Logger)

		return
	}

	r.Logger.Info("measuring",
		slog.String("server", server),
		slog.String("scenario", sc.Name),
		slog.String("urls", fmt.Sprint(spec.URLs)),
	)

	output, crashed := loadgen.RunH2(r.exec(), spec, r.Logger)

	m := metrics.ParseH2Load(output)
	if crashed && m.Succeeded == 0 {
		r.Logger.Error("h2load failed",
			slog.String("server", server), slog.String("scenario", sc.Name))
		r.Store.Record(server, sc.Name, report.Unavailable())
		r.appendBlock(server, sc.Name, output, true)
		r.recordMemory(server, sc.Name)

		return
	}

	if crashed {
		r.Logger.Warn("h2load crashed but produced partial results",
			slog.String("server", server), slog.String("scenario", sc.Name))
	}

	anomaly := r.flagReference(server, sc.Name, m.TotalErrors())

	// Successful throughput is recomputed from succeeded requests over
	// the measured duration; without either, the raw rate stands.
	rps := m.RPS
	if m.DurationSeconds > 0 && m.Succeeded > 0 {
		rps = fmt.Sprintf("%.2f", float64(m.Succeeded)/m.DurationSeconds)
	}

	r.Store.Record(server, sc.Name, report.Cell{
		RPS:           rps,
		RPSRaw:        m.RPS,
		Latency:       m.Latency,
		LatencyRaw:    m.Latency,
		Transfer:      m.Transfer,
		TimeoutErrors: m.Timeout,
	})
	r.appendBlock(server, sc.Name, output, anomaly)
	r.recordMemory(server, sc.Name)
}
