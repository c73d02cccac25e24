package loadgen

import (
	"fmt"
	"strings"
	"time"
)

// H2LoadSpec describes one h2load invocation.
type H2LoadSpec struct {
	Connections     int
	Threads         int
	Streams         int // max concurrent streams per connection (-m)
	DurationSeconds float64
	BodyFile        string   // optional POST body (-d)
	ExtraHeaders    []string // optional -H flags
	ALPN            bool     // negotiate h2 via ALPN (TLS runs)
	URLs            []string // one or more target URIs, cycled round-robin
}

// Args renders the h2load command line. -T kills stale connections
// shortly after the duration elapses to prevent indefinite hangs.
func (s H2LoadSpec) Args() []string {
	args := []string{
		"h2load",
		fmt.Sprintf("-c%d", s.Connections),
		fmt.Sprintf("-t%d", s.Threads),
		fmt.Sprintf("-m%d", s.Streams),
		fmt.Sprintf("-D%.0f", s.DurationSeconds),
		fmt.Sprintf("-T%.0fs", s.DurationSeconds+10),
	}

	if s.BodyFile != "" {
		args = append(args, "-d", s.BodyFile)
	}

	for _, hdr := range s.ExtraHeaders {
		args = append(args, "-H", hdr)
	}

	if s.ALPN {
		args = append(args, "--alpn-list=h2")
	}

	return append(args, s.URLs...)
}

// ProcessTimeout bounds the whole invocation. h2load can hang forever
// when every connection stalls during the TLS handshake against a
// saturated server.
func (s H2LoadSpec) ProcessTimeout() time.Duration {
	return time.Duration(s.DurationSeconds)*time.Second + execTimeoutMargin
}

// withConnections returns a copy of argv with the -c flag replaced.
func withConnections(argv []string, connections int) []string {
	out := make([]string, len(argv))
	copy(out, argv)

	for i, tok := range out {
		if strings.HasPrefix(tok, "-c") {
			out[i] = fmt.Sprintf("-c%d", connections)
			break
		}
	}

	return out
}
