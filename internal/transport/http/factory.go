package http

import (
	"fmt"
	"net"
	"net/http"

	"github.com/mocktide/mocktide/internal/core"
)

// Factory binds listener ports and assembles servers for the fleet.
// It implements core.ServerFactory.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Bind claims the TCP port. Binding is separate from server assembly
// so that port conflicts surface before any tunnel is started.
func (f *Factory) Bind(port int) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	return ln, nil
}

// New assembles a server over an already bound listener.
func (f *Factory) New(ln net.Listener, tlsSpec *core.ServerTLS, handler http.Handler) (core.HTTPServer, error) {
	return NewServer(
		WithListener(ln),
		WithHandler(handler),
		WithTLS(tlsSpec),
	)
}
