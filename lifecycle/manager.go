// Package lifecycle starts and stops benchmarked server processes. Each
// server runs in its own process group so that teardown signals reach
// any worker children it spawns; stdout and stderr are captured to a
// per-server log file that is released on every exit path.
package lifecycle

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aeronet-labs/httpbench/launch"
)

// Handle owns a running server process, its log file and its port.
// Exactly one live handle exists per server name.
type Handle struct {
	cmd     *exec.Cmd
	logFile *os.File
	LogPath string
	Port    int
	done    chan struct{}
}

// PID returns the primary process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// exited reports whether the primary process has been reaped.
func (h *Handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// StartOptions control readiness probing for one server start.
type StartOptions struct {
	Scheme   string // "http" or "https"
	Insecure bool   // allow invalid certificates on the health probe
	H2C      bool   // probe with a prior-knowledge HTTP/2 transport
}

// Manager tracks live server processes for the run.
type Manager struct {
	LogsDir string
	Threads int
	Logger  *slog.Logger

	// Probe overrides readiness polling when non-nil. Tests use it to
	// decouple Start from a real health endpoint.
	Probe func(port int, opts StartOptions) bool

	handles map[string]*Handle
}

// NewManager creates a manager writing server logs under logsDir.
func NewManager(logsDir string, threads int, logger *slog.Logger) *Manager {
	return &Manager{
		LogsDir: logsDir,
		Threads: threads,
		Logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Handle returns the live handle for server, if any.
func (m *Manager) Handle(server string) (*Handle, bool) {
	h, ok := m.handles[server]
	return h, ok
}

// Start launches server on port with the resolved command and waits for
// its health endpoint. It returns false when the port is occupied, the
// process cannot be spawned, or readiness never arrives; a false return
// means "server unavailable for this scenario group", never a fatal
// error. A server that is already running is left as is.
func (m *Manager) Start(server string, port int, cmd launch.Command, opts StartOptions) bool {
	if _, ok := m.handles[server]; ok {
		return true
	}

	if portInUse(port) {
		m.Logger.Error("port already in use, skipping server",
			slog.String("server", server), slog.Int("port", port))

		return false
	}

	logPath := filepath.Join(m.LogsDir, server+".log")

	logFile, err := os.Create(logPath)
	if err != nil {
		m.Logger.Error("cannot create server log",
			slog.String("server", server), slog.String("error", err.Error()))

		return false
	}

	proc := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	proc.Dir = cmd.Dir
	proc.Stdout = logFile
	proc.Stderr = logFile
	proc.Env = m.childEnv(server, port)
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := proc.Start(); err != nil {
		logFile.Close()
		m.Logger.Error("failed to start server",
			slog.String("server", server), slog.String("error", err.Error()))

		return false
	}

	handle := &Handle{
		cmd:     proc,
		logFile: logFile,
		LogPath: logPath,
		Port:    port,
		done:    make(chan struct{}),
	}
	go func() {
		proc.Wait()
		close(handle.done)
	}()

	m.handles[server] = handle

	probe := m.Probe
	if probe == nil {
		probe = func(port int, opts StartOptions) bool {
			prober := Prober{Scheme: opts.Scheme, Insecure: opts.Insecure, H2C: opts.H2C}
			return prober.WaitReady(port)
		}
	}

	if !probe(port, opts) {
		m.Logger.Error("server failed to report ready",
			slog.String("server", server), slog.String("log", logPath))
		m.Stop(server)

		return false
	}

	m.Logger.Info("server ready",
		slog.String("server", server),
		slog.Int("pid", proc.Process.Pid),
		slog.Int("port", port),
	)

	return true
}

// Stop tears down server with escalating signals: SIGTERM to the whole
// process group, then SIGKILL to the group, then a direct kill of the
// primary process. The log file is closed regardless of how termination
// proceeds; failures are warnings, never fatal.
func (m *Manager) Stop(server string) {
	handle, ok := m.handles[server]
	if !ok {
		return
	}

	delete(m.handles, server)
	defer handle.logFile.Close()

	if handle.exited() {
		return
	}

	pid := handle.cmd.Process.Pid

	signalGroup(pid, unix.SIGTERM)
	if waitExit(handle, 3*time.Second) {
		return
	}

	signalGroup(pid, unix.SIGKILL)
	if waitExit(handle, 5*time.Second) {
		return
	}

	// Last resort: kill the primary process directly, not the group.
	handle.cmd.Process.Kill()
	if !waitExit(handle, 3*time.Second) {
		m.Logger.Warn("could not stop server, process may be orphaned",
			slog.String("server", server), slog.Int("pid", pid))
	}
}

// StopAll tears down every live server.
func (m *Manager) StopAll() {
	for server := range m.handles {
		m.Stop(server)
	}
}

// childEnv builds the child environment: the inherited environment with
// profiler variables scrubbed, BENCH_PORT/BENCH_THREADS injected, and
// per-server scoped profiler variables re-injected. The scoping keeps a
// profiling wrapper aimed at one server from leaking into the load
// generator or any other child.
func (m *Manager) childEnv(server string, port int) []string {
	profilerVars := []string{
		"LD_PRELOAD",
		"HEAPPROFILE",
		"HEAP_PROFILE_ALLOCATION_INTERVAL",
		"HEAPPROFILESIGNAL",
		"CPUPROFILE",
		"CPUPROFILE_FREQUENCY",
	}

	drop := make(map[string]bool, len(profilerVars))
	for _, name := range profilerVars {
		drop[name] = true
	}

	env := make([]string, 0, len(os.Environ())+8)

	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if !drop[name] {
			env = append(env, kv)
		}
	}

	env = append(env,
		"BENCH_PORT="+strconv.Itoa(port),
		"BENCH_THREADS="+strconv.Itoa(m.Threads),
	)

	scope := "BENCH_" + strings.ToUpper(server) + "_"
	for _, name := range profilerVars {
		if val := os.Getenv(scope + name); val != "" {
			env = append(env, name+"="+val)
		}
	}

	return env
}

func signalGroup(pid int, sig unix.Signal) {
	// Negative pid addresses the whole process group.
	unix.Kill(-pid, sig)
}

func waitExit(handle *Handle, timeout time.Duration) bool {
	select {
	case <-handle.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// portInUse probes the port with a short non-blocking connect.
func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 100*time.Millisecond)
	if err != nil {
		return false
	}

	conn.Close()

	return true
}
