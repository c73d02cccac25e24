// Package main provides the CLI entry point for httpbench, an HTTP
// server benchmark orchestrator driving wrk and h2load against a fleet
// of server implementations.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aeronet-labs/httpbench/catalog"
	"github.com/aeronet-labs/httpbench/config"
	"github.com/aeronet-labs/httpbench/launch"
	"github.com/aeronet-labs/httpbench/lifecycle"
	"github.com/aeronet-labs/httpbench/loadgen"
	"github.com/aeronet-labs/httpbench/procmem"
	"github.com/aeronet-labs/httpbench/report"
	"github.com/aeronet-labs/httpbench/runner"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "httpbench",
		Short: "HTTP server benchmark orchestrator",
		Long: `Httpbench runs wrk (HTTP/1.1) or h2load (HTTP/2) workload scenarios
against a fleet of server implementations, one server and one scenario at a
time, and aggregates throughput, latency, transfer and memory results into
console tables, a text log, a JSON summary and a badge document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		run        = config.Defaults()
		protocol   string
		scriptDir  string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run benchmark scenarios against the selected servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := overlayConfigFile(cmd, &run, configPath); err != nil {
					return err
				}
			}

			if cmd.Flags().Changed("protocol") || run.Protocol == "" {
				run.Protocol = config.Protocol(protocol)
			}

			return runBenchmarks(cmd.Context(), logger, run, scriptDir)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&protocol, "protocol", string(run.Protocol),
		"Wire protocol: http1, h2c, or h2-tls")
	flags.IntVar(&run.Threads, "threads", run.Threads,
		"Load generator threads")
	flags.IntVar(&run.Connections, "connections", run.Connections,
		"Concurrent connections")
	flags.StringVar(&run.Duration, "duration", run.Duration,
		"Measurement duration (wrk format, e.g. 30s)")
	flags.StringVar(&run.Warmup, "warmup", run.Warmup,
		"Warm-up duration before each measured pass")
	flags.StringVar(&run.Timeout, "timeout", run.Timeout,
		"Per-request timeout")
	flags.StringVar(&run.OutputDir, "output", run.OutputDir,
		"Directory for results, logs and JSON artifacts")
	flags.StringVar(&run.Servers, "server", run.Servers,
		"Servers to test: comma list, all, or all-except-<name>")
	flags.StringVar(&run.Scenarios, "scenario", run.Scenarios,
		"Scenarios to run: comma list or all")
	flags.IntVar(&run.H2Streams, "h2-streams", run.H2Streams,
		"Max concurrent HTTP/2 streams per connection")
	flags.StringVar(&run.Reference, "reference", run.Reference,
		"Reference server; its errors fail the whole run")
	flags.BoolVar(&run.SkipBuild, "skip-build", run.SkipBuild,
		"Skip building server toolchain targets")
	flags.StringVar(&scriptDir, "script-dir", ".",
		"Directory holding lua scripts, server sources and resources")
	flags.StringVar(&configPath, "config", "",
		"YAML config file overriding environment defaults")

	return cmd
}

// overlayConfigFile applies YAML settings under every flag the user did
// not set explicitly, preserving flag > file > env > default precedence.
func overlayConfigFile(cmd *cobra.Command, run *config.Run, path string) error {
	fromFile := *run
	if err := fromFile.LoadFile(path); err != nil {
		return err
	}

	flags := cmd.Flags()

	if !flags.Changed("protocol") {
		run.Protocol = fromFile.Protocol
	}
	if !flags.Changed("threads") {
		run.Threads = fromFile.Threads
	}
	if !flags.Changed("connections") {
		run.Connections = fromFile.Connections
	}
	if !flags.Changed("duration") {
		run.Duration = fromFile.Duration
	}
	if !flags.Changed("warmup") {
		run.Warmup = fromFile.Warmup
	}
	if !flags.Changed("timeout") {
		run.Timeout = fromFile.Timeout
	}
	if !flags.Changed("output") {
		run.OutputDir = fromFile.OutputDir
	}
	if !flags.Changed("server") {
		run.Servers = fromFile.Servers
	}
	if !flags.Changed("scenario") {
		run.Scenarios = fromFile.Scenarios
	}
	if !flags.Changed("h2-streams") {
		run.H2Streams = fromFile.H2Streams
	}
	if !flags.Changed("reference") {
		run.Reference = fromFile.Reference
	}
	if !flags.Changed("skip-build") {
		run.SkipBuild = fromFile.SkipBuild
	}

	return nil
}

func runBenchmarks(ctx context.Context, logger *slog.Logger, run config.Run, scriptDir string) error {
	if err := run.Validate(); err != nil {
		return err
	}

	if err := loadgen.CheckTool(run.Protocol.Tool()); err != nil {
		return err
	}

	scriptDir, err := filepath.Abs(scriptDir)
	if err != nil {
		return fmt.Errorf("resolve script dir: %w", err)
	}

	h2 := run.Protocol.IsH2()
	resolver := launch.NewResolver(scriptDir, logger)

	// Build every candidate toolchain target up front through the
	// bounded pool, so availability filtering sees the results.
	var availFn func(string) bool
	if !run.SkipBuild {
		built := resolver.BuildAll(ctx, catalog.ServerOrder(h2))

		set := make(map[string]bool, len(built))
		for _, name := range built {
			set[name] = true
		}

		availFn = func(name string) bool { return set[name] }
	}

	servers, err := catalog.ResolveServers(run.Servers, h2, availFn)
	if err != nil {
		return err
	}

	scenarios, err := catalog.ResolveScenarios(run.Scenarios, h2)
	if err != nil {
		return err
	}

	logger.Info("starting benchmark run",
		slog.String("protocol", string(run.Protocol)),
		slog.Int("threads", run.Threads),
		slog.Int("connections", run.Connections),
		slog.String("duration", run.Duration),
		slog.Any("servers", servers),
		slog.Any("scenarios", scenarios),
	)

	outputDir, err := filepath.Abs(run.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	logsDir := filepath.Join(outputDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create output dirs: %w", err)
	}

	if err := runner.PrepareResources(scriptDir, scenarios, run.Protocol, logger); err != nil {
		return err
	}

	store := report.NewStore(servers, scenarios)

	textLog := report.NewTextLog(outputDir, time.Now())
	if err := textLog.WriteHeader(run); err != nil {
		return err
	}

	r := &runner.Runner{
		Run:       run,
		Servers:   servers,
		Scenarios: scenarios,
		Resolver:  resolver,
		Manager:   lifecycle.NewManager(logsDir, run.Threads, logger),
		Store:     store,
		TextLog:   textLog,
		Collector: procmem.Collector{},
		Logger:    logger,
		Exec:      loadgen.Exec,
		Settle:    time.Second,
	}

	referenceFailed := r.Execute(ctx)

	store.PrintTables(os.Stdout)
	store.PrintMemoryTable(os.Stdout)

	if err := textLog.AppendSummaryTable(store, run.Threads); err != nil {
		logger.Warn("cannot append summary table", slog.String("error", err.Error()))
	}

	if err := textLog.AppendMemoryTable(store); err != nil {
		logger.Warn("cannot append memory table", slog.String("error", err.Error()))
	}

	summary := report.BuildSummary(run, store)
	if err := report.WriteSummary(outputDir, summary); err != nil {
		return err
	}

	if err := report.WriteBadge(outputDir, report.BuildBadge(summary, run.Reference)); err != nil {
		return err
	}

	logger.Info("benchmark run complete",
		slog.String("results", textLog.Path),
		slog.String("summary", filepath.Join(outputDir, "benchmark_latest.json")),
	)

	if referenceFailed {
		return fmt.Errorf("reference server %s reported errors during the run", run.Reference)
	}

	return nil
}
