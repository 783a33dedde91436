package core

import "fmt"

// ErrParse indicates malformed configuration text: an unclosed
// multi-line string or comment, or a document that is not valid JSON
// after preprocessing.
type ErrParse struct {
	Detail string
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("parse error: %s", e.Detail)
}

// ErrVariableNotFound indicates an @{NAME} reference whose name is
// absent from the environment and which carries no default.
type ErrVariableNotFound struct {
	Name string
}

func (e *ErrVariableNotFound) Error() string {
	return fmt.Sprintf("variable %q not found and no default given", e.Name)
}

// ErrInvalidCertificate indicates that a certificate, private key, or
// CA certificate failed validation. Kind names the offending material.
type ErrInvalidCertificate struct {
	Kind   string
	Reason string
}

func (e *ErrInvalidCertificate) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
}

// ErrListenerExists indicates a CreateListener call with an id that is
// already registered.
type ErrListenerExists struct {
	ID string
}

func (e *ErrListenerExists) Error() string {
	return fmt.Sprintf("listener %q already exists", e.ID)
}

// ErrListenerNotFound indicates an operation on an unknown listener
// id. Releasing a listener twice surfaces as this error.
type ErrListenerNotFound struct {
	ID string
}

func (e *ErrListenerNotFound) Error() string {
	return fmt.Sprintf("listener %q not found", e.ID)
}

// ErrListenerCreation indicates that a listener could not be brought
// up: port bind failure, TLS setup failure, or tunnel startup failure.
type ErrListenerCreation struct {
	ID  string
	Err error
}

func (e *ErrListenerCreation) Error() string {
	return fmt.Sprintf("create listener %q: %v", e.ID, e.Err)
}

func (e *ErrListenerCreation) Unwrap() error { return e.Err }

// ErrInvalidExpectation indicates a malformed expectation document.
type ErrInvalidExpectation struct {
	Reason string
}

func (e *ErrInvalidExpectation) Error() string {
	return fmt.Sprintf("invalid expectation: %s", e.Reason)
}

// ErrTokenAcquisition indicates that an OAuth2 client-credentials
// exchange failed or returned an unusable response.
type ErrTokenAcquisition struct {
	TokenURL string
	Err      error
}

func (e *ErrTokenAcquisition) Error() string {
	return fmt.Sprintf("acquire token from %s: %v", e.TokenURL, e.Err)
}

func (e *ErrTokenAcquisition) Unwrap() error { return e.Err }

// ErrTunnelStartup indicates that a port-forward tunnel could not be
// established: command probe, pod discovery, port allocation, or
// subprocess startup failure.
type ErrTunnelStartup struct {
	Namespace string
	PodPrefix string
	Reason    string
}

func (e *ErrTunnelStartup) Error() string {
	return fmt.Sprintf("start tunnel %s:%s: %s", e.Namespace, e.PodPrefix, e.Reason)
}

// ErrTemplate indicates a template rendering failure: syntax error or
// a referenced value that is missing from the request context.
type ErrTemplate struct {
	Message string
}

func (e *ErrTemplate) Error() string {
	return fmt.Sprintf("template error: %s", e.Message)
}

// ErrRelayTransport indicates that an outbound relay call failed at
// the transport level.
type ErrRelayTransport struct {
	Err error
}

func (e *ErrRelayTransport) Error() string {
	return fmt.Sprintf("relay transport: %v", e.Err)
}

func (e *ErrRelayTransport) Unwrap() error { return e.Err }
