// Package runner drives a benchmark run end to end: resource
// preparation, server lifecycle, warm-up and measurement passes, and
// result recording. Measurement is strictly sequential; exactly one
// server and one load generator run at a time so pairs never contend
// for CPU.
package runner

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aeronet-labs/httpbench/config"
	"github.com/aeronet-labs/httpbench/launch"
	"github.com/aeronet-labs/httpbench/lifecycle"
	"github.com/aeronet-labs/httpbench/loadgen"
	"github.com/aeronet-labs/httpbench/procmem"
	"github.com/aeronet-labs/httpbench/report"
)

// Runner owns the sequential execution of every (server, scenario)
// pair selected for the run.
type Runner struct {
	Run       config.Run
	Servers   []string
	Scenarios []string

	Resolver  *launch.Resolver
	Manager   *lifecycle.Manager
	Store     *report.Store
	TextLog   *report.TextLog
	Collector procmem.Collector
	Logger    *slog.Logger

	// Exec runs load-generator invocations; tests substitute a stub.
	Exec loadgen.ExecFunc

	// Settle is slept after each server stop so the kernel releases
	// the port and connection state before the next start.
	Settle time.Duration

	referenceFailed bool
}

// Execute runs the full suite and reports whether the reference server
// produced any protocol errors. The run always completes every pair;
// the flag only affects the final exit status.
func (r *Runner) Execute(ctx context.Context) (referenceFailed bool) {
	defer r.Manager.StopAll()

	for _, server := range r.Servers {
		if r.Run.Protocol.IsH2() {
			r.runServerSuiteH2(ctx, server)
		} else {
			r.runServerSuite(ctx, server)
		}
	}

	return r.referenceFailed
}

func (r *Runner) exec() loadgen.ExecFunc {
	if r.Exec != nil {
		return r.Exec
	}

	return loadgen.Exec
}

func (r *Runner) settle() {
	if r.Settle > 0 {
		time.Sleep(r.Settle)
	}
}

// flagReference marks the run failed when the reference server shows
// protocol-level errors on any pair.
func (r *Runner) flagReference(server, scenario string, totalErrors int) bool {
	if server != r.Run.Reference || totalErrors == 0 {
		return false
	}

	r.referenceFailed = true
	r.Logger.Error("reference server reported errors",
		slog.String("server", server),
		slog.String("scenario", scenario),
		slog.Int("errors", totalErrors),
	)

	return true
}

// recordUnavailable stores the sentinel cell for a pair that could not
// be measured. Every selected pair receives a record.
func (r *Runner) recordUnavailable(server, scenario, why string) {
	r.Logger.Warn("scenario unavailable",
		slog.String("server", server),
		slog.String("scenario", scenario),
		slog.String("reason", why),
	)
	r.Store.Record(server, scenario, report.Unavailable())
}

func (r *Runner) appendBlock(server, scenario, output string, isError bool) {
	if err := r.TextLog.AppendBlock(server, scenario, output, isError); err != nil {
		r.Logger.Warn("cannot append to results log", slog.String("error", err.Error()))
	}
}

// recordMemory samples the server's process tree right after the pair's
// measurement pass, while it is still warm.
func (r *Runner) recordMemory(server, scenario string) {
	handle, ok := r.Manager.Handle(server)
	if !ok {
		return
	}

	if stats := r.Collector.Sample(handle.PID()); stats != nil {
		r.Store.AttachMemory(server, scenario, stats)
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
