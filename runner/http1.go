package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aeronet-labs/httpbench/catalog"
	"github.com/aeronet-labs/httpbench/lifecycle"
	"github.com/aeronet-labs/httpbench/loadgen"
	"github.com/aeronet-labs/httpbench/metrics"
	"github.com/aeronet-labs/httpbench/report"
)

// runServerSuite measures every selected HTTP/1.1 scenario against one
// server. Scenarios that tolerate a shared server process are warmed in
// one pass and then measured in a second pass against the same warm
// process; restart-requiring scenarios each get a dedicated process
// with their extra launch arguments.
func (r *Runner) runServerSuite(ctx context.Context, server string) {
	srv, ok := catalog.LookupServer(server)
	if !ok {
		return
	}

	r.Logger.Info("testing server", slog.String("server", server))

	normal, special := splitRestart(r.Scenarios, false)

	if len(normal) > 0 {
		cmd, err := r.Resolver.Resolve(ctx, server, nil)
		if err == nil && r.Manager.Start(server, srv.Port, cmd, lifecycle.StartOptions{Scheme: "http"}) {
			for _, name := range normal {
				r.warmWrk(server, mustScenario(name))
			}

			for _, name := range normal {
				r.measureWrk(server, mustScenario(name))
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
		sc := mustScenario(name)

		// TLS termination is only wired up in the reference server.
		if sc.RequiresTLS && server != r.Run.Reference {
			r.Logger.Info("skipping tls scenario",
				slog.String("server", server), slog.String("reason", "not supported"))

			continue
		}

		if sc.RequiresStatic {
			if err := EnsureStaticFiles(r.Resolver.ScriptDir, r.Logger); err != nil {
				r.recordUnavailable(server, name, err.Error())
				continue
			}
		}

		extraArgs := scenarioServerArgs(r.Resolver.ScriptDir, server, sc, r.Run.Reference)

		cmd, err := r.Resolver.Resolve(ctx, server, extraArgs)
		if err != nil {
			r.recordUnavailable(server, name, err.Error())
			continue
		}

		scheme := "http"
		if sc.UseHTTPS {
			scheme = "https"
		}

		opts := lifecycle.StartOptions{Scheme: scheme, Insecure: sc.RequiresTLS}
		if !r.Manager.Start(server, srv.Port, cmd, opts) {
			r.recordUnavailable(server, name, "server failed to start")
			continue
		}

		r.warmWrk(server, sc)
		r.measureWrk(server, sc)
		r.Manager.Stop(server)
		r.settle()
	}
}

// splitRestart partitions scenario names into those sharing one server
// process and those needing a dedicated restart, preserving order.
func splitRestart(names []string, h2 bool) (normal, special []string) {
	for _, name := range names {
		restart := false

		if h2 {
			sc, ok := catalog.LookupH2Scenario(name)
			if !ok {
				continue
			}

			restart = sc.RequiresRestart
		} else {
			sc, ok := catalog.LookupScenario(name)
			if !ok {
				continue
			}

			restart = sc.RequiresRestart
		}

		if restart {
			special = append(special, name)
		} else {
			normal = append(normal, name)
		}
	}

	return normal, special
}

func mustScenario(name string) catalog.Scenario {
	sc, _ := catalog.LookupScenario(name)
	return sc
}

// scenarioServerArgs builds the extra launch arguments restart-requiring
// scenarios pass to the server.
func scenarioServerArgs(scriptDir, server string, sc catalog.Scenario, reference string) []string {
	var args []string

	staticDir := filepath.Join(scriptDir, "static")
	if sc.RequiresStatic && isDir(staticDir) {
		args = append(args, "--static", staticDir)
	}

	if sc.Name == "routing" {
		args = append(args, "--routes", "1000")
	}

	if sc.RequiresTLS && server == reference {
		if cert, key, ok := certPaths(scriptDir); ok {
			args = append(args, "--tls", "--cert", cert, "--key", key)
		}
	}

	return args
}

func (r *Runner) wrkSpec(server string, sc catalog.Scenario, duration string) (loadgen.WrkSpec, bool) {
	srv, _ := catalog.LookupServer(server)

	lua := filepath.Join(r.Resolver.ScriptDir, sc.LuaScript)
	if !isFile(lua) {
		return loadgen.WrkSpec{}, false
	}

	scheme := "http"
	if sc.UseHTTPS {
		scheme = "https"
	}

	return loadgen.WrkSpec{
		Threads:     r.Run.Threads,
		Connections: r.Run.Connections,
		Duration:    duration,
		Timeout:     r.Run.Timeout,
		LuaScript:   lua,
		URL:         fmt.Sprintf("%s://127.0.0.1:%d%s", scheme, srv.Port, sc.Endpoint),
	}, true
}

func (r *Runner) warmWrk(server string, sc catalog.Scenario) {
	spec, ok := r.wrkSpec(server, sc, r.Run.Warmup)
	if !ok {
		return
	}

	r.Logger.Info("warm-up",
		slog.String("server", server), slog.String("scenario", sc.Name))
	loadgen.Warmup(r.exec(), spec.Args(), spec.ProcessTimeout(), r.Logger)
}

func (r *Runner) measureWrk(server string, sc catalog.Scenario) {
	spec, ok := r.wrkSpec(server, sc, r.Run.Duration)
	if !ok {
		r.recordUnavailable(server, sc.Name, "lua script not found: "+sc.LuaScript)
		return
	}

	r.Logger.Info("measuring",
		slog.String("server", server),
		slog.String("scenario", sc.Name),
		slog.String("url", spec.URL),
	)

	output, crashed := r.exec()(spec.Args(), spec.ProcessTimeout())
	if crashed {
		r.Logger.Error("wrk failed",
			slog.String("server", server), slog.String("scenario", sc.Name))
		r.Store.Record(server, sc.Name, report.Unavailable())
		r.appendBlock(server, sc.Name, output, true)
		r.recordMemory(server, sc.Name)

		return
	}

	m := metrics.ParseWrk(output)
	anomaly := r.flagReference(server, sc.Name, m.TotalErrors())

	rps := metrics.SuccessRPS(m.RPS, m.TotalRequests, m.TotalErrors(), m.DurationSeconds)
	latency := metrics.AdjustedLatency(m.Latency, m.TotalRequests, m.ErrTimeout, r.Run.TimeoutSeconds)

	r.Store.Record(server, sc.Name, report.Cell{
		RPS:           rps,
		RPSRaw:        m.RPS,
		Latency:       latency,
		LatencyRaw:    m.Latency,
		Transfer:      m.Transfer,
		TimeoutErrors: m.ErrTimeout,
	})
	r.appendBlock(server, sc.Name, output, anomaly)
	r.recordMemory(server, sc.Name)
}
