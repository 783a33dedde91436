// Package http provides the HTTP server used both for the admin API
// and for every managed listener endpoint.
package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"github.com/mocktide/mocktide/internal/core"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server wraps *http.Server with optional TLS and CORS. It implements
// transport.Listener and core.HTTPServer.
type Server struct {
	inner          *http.Server
	address        string
	listener       net.Listener
	handler        http.Handler
	tlsSpec        *core.ServerTLS
	allowedOrigins []string
	corsEnabled    bool
	log            *slog.Logger
}

// WithAddress configures the listen address (e.g. ":8299").
func WithAddress(address string) ServerOption {
	return func(s *Server) { s.address = address }
}

// WithListener provides an external net.Listener. When set, Start
// serves on it instead of creating a new TCP listener from the
// configured address.
func WithListener(ln net.Listener) ServerOption {
	return func(s *Server) { s.listener = ln }
}

// WithHandler configures the request handler.
func WithHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.handler = h }
}

// WithTLS points the server at materialized TLS files. A CA file
// additionally enables client certificate verification.
func WithTLS(spec *core.ServerTLS) ServerOption {
	return func(s *Server) { s.tlsSpec = spec }
}

// WithCORS enables CORS for the given origins. An empty origin list
// allows all origins.
func WithCORS(origins []string) ServerOption {
	return func(s *Server) {
		s.corsEnabled = true
		s.allowedOrigins = origins
	}
}

// WithLogger configures a structured logger. Defaults to slog.Default
// with a "component" attribute.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer creates a new HTTP server with the given options.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		address: ":8299",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default().With("component", "http-server")
	}
	if s.handler == nil {
		return nil, errors.New("http server: handler must be configured")
	}
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.address)
		if err != nil {
			return nil, fmt.Errorf("http listen %q: %w", s.address, err)
		}
		s.listener = ln
	}

	handler := s.handler
	if s.corsEnabled {
		handler = s.wrapCORS(handler)
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		_ = s.listener.Close()
		return nil, err
	}

	s.inner = &http.Server{
		Addr:              s.address,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8 KiB
	}

	return s, nil
}

// Handler returns the server's top-level HTTP handler. Useful for
// testing the middleware chain without a real listener.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins accepting connections and blocks until the server is
// shut down or an unrecoverable error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.inner.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	s.log.Info("starting",
		"address", s.listener.Addr().String(),
		"tls", s.tlsSpec != nil,
		"cors", s.corsEnabled,
	)

	var err error
	if s.tlsSpec != nil {
		err = s.inner.ServeTLS(s.listener, s.tlsSpec.CertFile, s.tlsSpec.KeyFile)
	} else {
		err = s.inner.Serve(s.listener)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Stop gracefully drains connections. If the graceful shutdown
// exceeds the context deadline it forces an immediate close.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down")
	if err := s.inner.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown failed, forcing close", "error", err)
		return s.inner.Close()
	}
	return nil
}

// buildTLSConfig wires client certificate verification when a CA is
// configured. Without RequireClientAuth a client certificate is
// verified when presented but not demanded.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	if s.tlsSpec == nil || s.tlsSpec.CAFile == "" {
		return nil, nil
	}

	caPEM, err := os.ReadFile(s.tlsSpec.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("client ca file carries no certificates")
	}

	clientAuth := tls.VerifyClientCertIfGiven
	if s.tlsSpec.RequireClientAuth {
		clientAuth = tls.RequireAndVerifyClientCert
	}
	return &tls.Config{
		ClientCAs:  pool,
		ClientAuth: clientAuth,
	}, nil
}

func (s *Server) wrapCORS(next http.Handler) http.Handler {
	if len(s.allowedOrigins) == 0 {
		return cors.AllowAll().Handler(next)
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           7200,
	})
	return c.Handler(next)
}
