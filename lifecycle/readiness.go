package lifecycle

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Readiness polling bounds. Variables so tests can shrink the window.
var (
	readinessAttempts = 50
	readinessInterval = 200 * time.Millisecond
)

const readinessTimeout = 500 * time.Millisecond

// Prober polls a server's /status endpoint until it answers or the
// bounded attempt budget runs out.
type Prober struct {
	Scheme   string // "http" or "https"
	Insecure bool
	H2C      bool
}

// WaitReady polls the health endpoint on port. Any successful response
// counts as ready; the status endpoint only answers once the server's
// listener loop is up.
func (p Prober) WaitReady(port int) bool {
	client := p.client()
	defer client.CloseIdleConnections()

	url := fmt.Sprintf("%s://127.0.0.1:%d/status", p.scheme(), port)

	for attempt := 0; attempt < readinessAttempts; attempt++ {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()

			if resp.StatusCode < http.StatusBadRequest {
				return true
			}
		}

		time.Sleep(readinessInterval)
	}

	return false
}

func (p Prober) scheme() string {
	if p.Scheme == "" {
		return "http"
	}

	return p.Scheme
}

func (p Prober) client() *http.Client {
	if p.H2C {
		// Prior-knowledge HTTP/2 over cleartext: h2c-only servers do
		// not answer HTTP/1.1 probes on the same port.
		transport := &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}

		return &http.Client{Transport: transport, Timeout: readinessTimeout}
	}

	transport := &http.Transport{}
	if p.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport, Timeout: readinessTimeout}
}
