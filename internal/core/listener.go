// Package core holds the domain model of the mock/relay host:
// listener configuration, expectations, response strategies, the
// per-request dispatch callback, and the listener manager use case.
// Infrastructure concerns (TLS files, tunnels, token fetches, HTTP
// servers) are reached through provider interfaces so that the domain
// layer never depends on concrete infrastructure.
package core

import "fmt"

// Header is an ordered name/value pair. Listener global headers and
// expectation response headers preserve their configured order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BasicAuth gates every request on a listener with HTTP basic
// authentication.
type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MTLSConfig enables client-certificate verification on a TLS
// listener.
type MTLSConfig struct {
	CACertificate     string `json:"caCertificate"`
	RequireClientAuth bool   `json:"requireClientAuth"`
}

// TLSConfig carries the PEM material for a TLS listener.
type TLSConfig struct {
	Certificate string      `json:"certificate"`
	PrivateKey  string      `json:"privateKey"`
	MTLS        *MTLSConfig `json:"mtlsConfig,omitempty"`
}

// ListenerConfig describes one HTTP(S) endpoint. It is immutable once
// the listener has been created.
type ListenerConfig struct {
	ListenerID    string      `json:"serverId"`
	Port          int         `json:"port"`
	Description   string      `json:"description,omitempty"`
	TLS           *TLSConfig  `json:"tlsConfig,omitempty"`
	BasicAuth     *BasicAuth  `json:"basicAuthConfig,omitempty"`
	GlobalHeaders []Header    `json:"globalHeaders,omitempty"`
	Relays        []RelayRule `json:"relays,omitempty"`
}

// Validate checks the structural invariants of a listener
// configuration. Uniqueness of id and port is enforced by the manager,
// not here.
func (c *ListenerConfig) Validate() error {
	if c.ListenerID == "" {
		return &ErrInvalidExpectation{Reason: "serverId must not be empty"}
	}
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("listener %q: port %d out of range [1024, 65535]", c.ListenerID, c.Port)
	}
	if c.TLS != nil {
		if c.TLS.Certificate == "" || c.TLS.PrivateKey == "" {
			return &ErrInvalidCertificate{Kind: "tls config", Reason: "certificate and privateKey must both be set"}
		}
		if c.TLS.MTLS != nil && c.TLS.MTLS.CACertificate == "" {
			return &ErrInvalidCertificate{Kind: "mtls config", Reason: "caCertificate must not be empty"}
		}
	}
	for i := range c.Relays {
		if err := c.Relays[i].Validate(); err != nil {
			return fmt.Errorf("listener %q relay %d: %w", c.ListenerID, i, err)
		}
	}
	return nil
}
