package core

import "errors"

// GrantClientCredentials is the only OAuth2 grant the relay performs.
const GrantClientCredentials = "client_credentials"

// DefaultRelayPrefixes is applied when a relay rule declares no
// prefixes of its own.
var DefaultRelayPrefixes = []string{"/**"}

// TunnelSpec identifies a pod to reach through an external
// port-forward subprocess.
type TunnelSpec struct {
	Namespace string `json:"namespace"`
	PodPrefix string `json:"podPrefix"`
	PodPort   int    `json:"podPort"`
}

// Key is the tunnel map key within a listener instance.
func (t TunnelSpec) Key() string {
	return t.Namespace + ":" + t.PodPrefix
}

func (t TunnelSpec) complete() bool {
	return t.Namespace != "" && t.PodPrefix != "" && t.PodPort > 0
}

// RelayAuth is the OAuth2 client-credentials triple attached to a
// relay rule.
type RelayAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	GrantType    string
}

// RelayRule forwards matching requests to an origin, directly or
// through a tunnel, optionally exchanging client credentials for a
// bearer token first.
type RelayRule struct {
	RemoteURL    string            `json:"remoteUrl,omitempty"`
	Tunnel       *TunnelSpec       `json:"tunnelConfig,omitempty"`
	Prefixes     []string          `json:"prefixes,omitempty"`
	TokenURL     string            `json:"tokenUrl,omitempty"`
	ClientID     string            `json:"clientId,omitempty"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Scope        string            `json:"scope,omitempty"`
	GrantType    string            `json:"grantType,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	IgnoreTLS    bool              `json:"ignoreSSLErrors,omitempty"`

	// AssignedHostPort is populated exactly once, at tunnel start,
	// and never mutated afterwards. Zero means no active tunnel.
	AssignedHostPort int `json:"-"`
}

// HasAuth reports whether any OAuth2 field is configured.
func (r *RelayRule) HasAuth() bool {
	return r.TokenURL != "" || r.ClientID != "" || r.ClientSecret != "" || r.Scope != ""
}

// Auth returns the rule's OAuth2 configuration with defaults applied.
// Call only after Validate.
func (r *RelayRule) Auth() RelayAuth {
	grant := r.GrantType
	if grant == "" {
		grant = GrantClientCredentials
	}
	return RelayAuth{
		TokenURL:     r.TokenURL,
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Scope:        r.Scope,
		GrantType:    grant,
	}
}

// MatchPrefixes returns the rule's prefixes, falling back to the
// default catch-all.
func (r *RelayRule) MatchPrefixes() []string {
	if len(r.Prefixes) == 0 {
		return DefaultRelayPrefixes
	}
	return r.Prefixes
}

// Validate enforces the relay rule invariants: a reachable target and
// an all-or-nothing OAuth2 triple.
func (r *RelayRule) Validate() error {
	hasTunnel := r.Tunnel != nil && r.Tunnel.complete()
	if r.RemoteURL == "" && !hasTunnel {
		return errors.New("relay rule needs remoteUrl or a complete tunnelConfig")
	}
	if r.Tunnel != nil && !r.Tunnel.complete() {
		return errors.New("tunnelConfig needs namespace, podPrefix and podPort")
	}
	if r.HasAuth() {
		if r.TokenURL == "" || r.ClientID == "" || r.ClientSecret == "" {
			return errors.New("oauth2 relay needs tokenUrl, clientId and clientSecret")
		}
		if r.GrantType != "" && r.GrantType != GrantClientCredentials {
			return errors.New("unsupported grantType " + r.GrantType)
		}
	}
	return nil
}
