package core

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaterialKind names one TLS scratch file per listener.
type MaterialKind string

const (
	MaterialCert MaterialKind = "cert"
	MaterialKey  MaterialKind = "key"
	MaterialCA   MaterialKind = "ca"
)

// MaterialStore persists PEM material to a scratch area and tracks it
// per listener for cleanup.
type MaterialStore interface {
	Write(listenerID string, pem []byte, kind MaterialKind) (string, error)
	Release(listenerID string) error
}

// CertValidator checks PEM material before it is persisted.
type CertValidator interface {
	ValidateCertificate(pem []byte) error
	ValidateKeyPair(certPEM, keyPEM []byte) error
}

// Forwarder is one running tunnel subprocess.
type Forwarder interface {
	HostPort() int
	Stop(ctx context.Context) error
}

// TunnelRunner starts tunnel subprocesses.
type TunnelRunner interface {
	Start(ctx context.Context, spec TunnelSpec) (Forwarder, error)
}

// HTTPServer is one bound listener endpoint.
type HTTPServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerTLS points an HTTP server at materialized TLS files.
type ServerTLS struct {
	CertFile          string
	KeyFile           string
	CAFile            string
	RequireClientAuth bool
}

// ServerFactory binds ports and assembles HTTP servers. Bind is
// separate from New so that port conflicts surface before tunnels are
// started.
type ServerFactory interface {
	Bind(port int) (net.Listener, error)
	New(ln net.Listener, tls *ServerTLS, handler http.Handler) (HTTPServer, error)
}

// Metrics receives fleet and request observations.
type Metrics interface {
	ObserveRequest(listener, strategy string, statusCode int)
	SetListenerCount(n int)
}

// ListenerView is the read-only snapshot returned to callers.
type ListenerView struct {
	ListenerID   string    `json:"serverId"`
	Port         int       `json:"port"`
	Description  string    `json:"description,omitempty"`
	TLS          bool      `json:"tls"`
	Relays       int       `json:"relays"`
	Expectations int       `json:"expectations"`
	Created      time.Time `json:"created"`
}

// instance is the runtime state of one listener. The manager holds it
// for lookup; the instance owns its mutable fields.
type instance struct {
	config     ListenerConfig
	registry   *Registry
	server     HTTPServer
	forwarders map[string]Forwarder
	hasTLS     bool
	created    time.Time
	cancel     context.CancelFunc
}

// Manager owns the listener fleet: creation, registration, release
// and shutdown. Creation and release are serialized per id; the slow
// work (TLS files, tunnels, binding) happens outside the registry
// lock, with the id reserved up front.
type Manager struct {
	store      MaterialStore
	certs      CertValidator
	tunnels    TunnelRunner
	strategies StrategyProvider
	servers    ServerFactory
	metrics    Metrics
	log        *slog.Logger

	mu        sync.Mutex
	listeners map[string]*instance
	ports     map[int]string
	shutdown  bool
}

func NewManager(store MaterialStore, certs CertValidator, tunnels TunnelRunner, strategies StrategyProvider, servers ServerFactory, metrics Metrics) *Manager {
	return &Manager{
		store:      store,
		certs:      certs,
		tunnels:    tunnels,
		strategies: strategies,
		servers:    servers,
		metrics:    metrics,
		log:        slog.Default().With("component", "listener-manager"),
		listeners:  map[string]*instance{},
		ports:      map[int]string{},
	}
}

// CreateListener validates the configuration, materializes TLS state,
// binds the port, starts tunnels sequentially, installs the strategy
// set and registers the instance. Any failure rolls back partial
// state.
func (m *Manager) CreateListener(ctx context.Context, cfg ListenerConfig) (*ListenerView, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := m.reserve(cfg.ListenerID, cfg.Port); err != nil {
		return nil, err
	}

	inst, err := m.assemble(ctx, cfg)
	if err != nil {
		m.unreserve(cfg.ListenerID, cfg.Port)
		return nil, &ErrListenerCreation{ID: cfg.ListenerID, Err: err}
	}

	m.mu.Lock()
	m.listeners[cfg.ListenerID] = inst
	count := len(m.listeners)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetListenerCount(count)
	}
	m.log.Info("listener created", "listener", cfg.ListenerID, "port", cfg.Port, "tls", inst.hasTLS, "relays", len(cfg.Relays))

	view := m.view(inst)
	return &view, nil
}

// reserve takes the id and port under the registry lock. A nil map
// entry marks an in-flight creation.
func (m *Manager) reserve(id string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return fmt.Errorf("listener manager is shut down")
	}
	if _, ok := m.listeners[id]; ok {
		return &ErrListenerExists{ID: id}
	}
	if owner, ok := m.ports[port]; ok {
		return fmt.Errorf("port %d already owned by listener %q", port, owner)
	}
	m.listeners[id] = nil
	m.ports[port] = id
	return nil
}

func (m *Manager) unreserve(id string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
	delete(m.ports, port)
}

// assemble does the slow part of creation without holding the
// registry lock.
func (m *Manager) assemble(ctx context.Context, cfg ListenerConfig) (inst *instance, err error) {
	var (
		tlsSpec    *ServerTLS
		ln         net.Listener
		forwarders = map[string]Forwarder{}
	)

	defer func() {
		if err == nil {
			return
		}
		for _, fw := range forwarders {
			stopCtx, cancel := context.WithTimeout(context.Background(), forwarderStopTimeout)
			_ = fw.Stop(stopCtx)
			cancel()
		}
		if ln != nil {
			_ = ln.Close()
		}
		// materializeTLS can fail after it has already written
		// tracked files, so release keys off the config, not the
		// returned spec.
		if cfg.TLS != nil {
			_ = m.store.Release(cfg.ListenerID)
		}
	}()

	if cfg.TLS != nil {
		tlsSpec, err = m.materializeTLS(cfg)
		if err != nil {
			return nil, err
		}
	}

	ln, err = m.servers.Bind(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", cfg.Port, err)
	}

	// Tunnels are started one at a time, never in parallel. The
	// first failure aborts the listener and stops what was started.
	rules := make([]RelayRule, len(cfg.Relays))
	copy(rules, cfg.Relays)
	for i := range rules {
		if rules[i].Tunnel == nil {
			continue
		}
		fw, startErr := m.tunnels.Start(ctx, *rules[i].Tunnel)
		if startErr != nil {
			err = startErr
			return nil, err
		}
		forwarders[rules[i].Tunnel.Key()] = fw
		rules[i].AssignedHostPort = fw.HostPort()
	}

	strategies := m.strategies.BaseStrategies()
	relayEnabled := len(rules) > 0
	if relayEnabled {
		relay, relayErr := m.strategies.RelayStrategy(rules)
		if relayErr != nil {
			err = relayErr
			return nil, err
		}
		strategies = append(strategies, relay)
	}

	registry := NewRegistry()
	dispatcher := NewDispatcher(cfg.ListenerID, &cfg, registry, strategies, relayEnabled, m.observeRequest, nil)

	server, err := m.servers.New(ln, tlsSpec, dispatcher)
	if err != nil {
		return nil, err
	}

	serveCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if serveErr := server.Start(serveCtx); serveErr != nil {
			m.log.Error("listener stopped", "listener", cfg.ListenerID, "error", serveErr)
		}
	}()

	return &instance{
		config:     cfg,
		registry:   registry,
		server:     server,
		forwarders: forwarders,
		hasTLS:     tlsSpec != nil,
		created:    time.Now(),
		cancel:     cancel,
	}, nil
}

// materializeTLS validates the PEM triple and writes it to the
// scratch area.
func (m *Manager) materializeTLS(cfg ListenerConfig) (*ServerTLS, error) {
	certPEM := []byte(cfg.TLS.Certificate)
	keyPEM := []byte(cfg.TLS.PrivateKey)

	if err := m.certs.ValidateCertificate(certPEM); err != nil {
		return nil, err
	}
	if err := m.certs.ValidateKeyPair(certPEM, keyPEM); err != nil {
		return nil, err
	}

	certFile, err := m.store.Write(cfg.ListenerID, certPEM, MaterialCert)
	if err != nil {
		return nil, err
	}
	keyFile, err := m.store.Write(cfg.ListenerID, keyPEM, MaterialKey)
	if err != nil {
		return nil, err
	}

	spec := &ServerTLS{CertFile: certFile, KeyFile: keyFile}
	if cfg.TLS.MTLS != nil {
		caPEM := []byte(cfg.TLS.MTLS.CACertificate)
		if err := m.certs.ValidateCertificate(caPEM); err != nil {
			return nil, err
		}
		caFile, err := m.store.Write(cfg.ListenerID, caPEM, MaterialCA)
		if err != nil {
			return nil, err
		}
		spec.CAFile = caFile
		spec.RequireClientAuth = cfg.TLS.MTLS.RequireClientAuth
	}
	return spec, nil
}

const (
	forwarderStopTimeout = 5 * time.Second
	serverStopTimeout    = 15 * time.Second
)

// ReleaseListener removes the listener and tears down everything it
// owns: tunnels first, then the HTTP server, then TLS scratch files.
// Errors are joined after best-effort cleanup. Releasing an unknown
// (or already released) id is an error.
func (m *Manager) ReleaseListener(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.listeners[id]
	if !ok || inst == nil {
		m.mu.Unlock()
		return &ErrListenerNotFound{ID: id}
	}
	delete(m.listeners, id)
	delete(m.ports, inst.config.Port)
	count := len(m.listeners)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetListenerCount(count)
	}
	return m.teardown(ctx, inst)
}

func (m *Manager) teardown(ctx context.Context, inst *instance) error {
	var errs []error

	for key, fw := range inst.forwarders {
		stopCtx, cancel := context.WithTimeout(ctx, forwarderStopTimeout)
		if err := fw.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop tunnel %s: %w", key, err))
		}
		cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, serverStopTimeout)
	if err := inst.server.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	cancel()
	inst.cancel()

	if inst.hasTLS {
		if err := m.store.Release(inst.config.ListenerID); err != nil {
			errs = append(errs, fmt.Errorf("release tls files: %w", err))
		}
	}

	m.log.Info("listener released", "listener", inst.config.ListenerID)
	return joinErrors(errs)
}

// AddExpectation validates and appends an expectation, replacing
// prior entries for the same (method, path).
func (m *Manager) AddExpectation(id string, exp *Expectation) error {
	if err := exp.Validate(); err != nil {
		return err
	}
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.registry.Add(exp)
	return nil
}

// ClearExpectations removes all expectations of a listener.
func (m *Manager) ClearExpectations(id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.registry.Clear()
	return nil
}

// Expectations returns the listener's current expectation snapshot.
func (m *Manager) Expectations(id string) ([]*Expectation, error) {
	inst, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return inst.registry.Snapshot(), nil
}

// Get returns a snapshot view of one listener.
func (m *Manager) Get(id string) (*ListenerView, error) {
	inst, err := m.get(id)
	if err != nil {
		return nil, err
	}
	view := m.view(inst)
	return &view, nil
}

// List returns snapshot views of all live listeners.
func (m *Manager) List() []ListenerView {
	m.mu.Lock()
	instances := make([]*instance, 0, len(m.listeners))
	for _, inst := range m.listeners {
		if inst != nil {
			instances = append(instances, inst)
		}
	}
	m.mu.Unlock()

	views := make([]ListenerView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, m.view(inst))
	}
	return views
}

// Shutdown releases every listener. It is idempotent and safe to call
// from both the orderly path and the signal path; tunnels are killed
// even when individual releases fail.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	ids := make([]string, 0, len(m.listeners))
	for id, inst := range m.listeners {
		if inst != nil {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.ReleaseListener(ctx, id); err != nil {
			m.log.Error("release during shutdown", "listener", id, "error", err)
		}
	}
	m.log.Info("listener manager shut down", "released", len(ids))
}

func (m *Manager) get(id string) (*instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.listeners[id]
	if !ok || inst == nil {
		return nil, &ErrListenerNotFound{ID: id}
	}
	return inst, nil
}

func (m *Manager) view(inst *instance) ListenerView {
	return ListenerView{
		ListenerID:   inst.config.ListenerID,
		Port:         inst.config.Port,
		Description:  inst.config.Description,
		TLS:          inst.hasTLS,
		Relays:       len(inst.config.Relays),
		Expectations: inst.registry.Len(),
		Created:      inst.created,
	}
}

func (m *Manager) observeRequest(listener, strategy string, statusCode int) {
	if m.metrics != nil {
		m.metrics.ObserveRequest(listener, strategy, statusCode)
	}
}
