package integration

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/metrics"
	"github.com/mocktide/mocktide/internal/oauth"
	"github.com/mocktide/mocktide/internal/pki"
	"github.com/mocktide/mocktide/internal/strategy"
	transporthttp "github.com/mocktide/mocktide/internal/transport/http"
)

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// waitForPort polls until the listener accepts connections.
func waitForPort(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("port %d not reachable within %s", port, timeout)
}

// stubTunnels satisfies core.TunnelRunner for fleets without tunnels.
type stubTunnels struct{}

func (stubTunnels) Start(context.Context, core.TunnelSpec) (core.Forwarder, error) {
	return nil, &core.ErrTunnelStartup{Reason: "tunnels disabled in integration tests"}
}

// newHost assembles a full manager over the real strategy, transport,
// pki and oauth stacks.
func newHost(scratch string) (*core.Manager, error) {
	store, err := pki.NewStore(scratch, true)
	if err != nil {
		return nil, err
	}
	return core.NewManager(
		store,
		pki.NewValidator(),
		stubTunnels{},
		strategy.NewProvider(oauth.NewCache()),
		transporthttp.NewFactory(),
		metrics.New(),
	), nil
}

func get(url string, header map[string]string) (*http.Response, string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp, string(body), err
}
