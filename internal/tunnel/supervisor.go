// Package tunnel supervises external port-forward subprocesses that
// bridge a local TCP port to a pod port. The supervisor discovers the
// target pod through the Kubernetes API, allocates a local port in a
// fixed range, launches the forward command and waits until the port
// is observably bound.
package tunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/mocktide/mocktide/internal/core"
)

const (
	portMin = 9000
	portMax = 11000
	// portAttempts bounds the random free-port search.
	portAttempts = 100

	probeTimeout  = 10 * time.Second
	startTimeout  = 30 * time.Second
	startPollStep = 500 * time.Millisecond
	stopTimeout   = 5 * time.Second
)

// minClientVersion is the oldest port-forward client the probe
// accepts.
var minClientVersion = semver.MustParse("1.24.0")

// ClientFactory produces the Kubernetes clientset used for pod
// discovery. It is called lazily so that hosts without tunneled
// relays never need cluster credentials.
type ClientFactory func() (kubernetes.Interface, error)

// DefaultClientFactory builds a clientset from the in-cluster config,
// falling back to the user's kubeconfig for local development.
func DefaultClientFactory() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		slog.Warn("in-cluster config not available, falling back to kubeconfig", "error", err)
		cfg, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		if err != nil {
			return nil, err
		}
	}
	return kubernetes.NewForConfig(cfg)
}

// Supervisor starts and owns port-forward subprocesses. It implements
// core.TunnelRunner.
type Supervisor struct {
	kubectl string
	factory ClientFactory
	log     *slog.Logger

	mu     sync.Mutex
	client kubernetes.Interface
	probed bool
}

// NewSupervisor builds a supervisor around the given port-forward
// command (usually "kubectl").
func NewSupervisor(kubectl string, factory ClientFactory) *Supervisor {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &Supervisor{
		kubectl: kubectl,
		factory: factory,
		log:     slog.Default().With("component", "tunnel-supervisor"),
	}
}

// Start brings up one tunnel: probe the command, discover the pod,
// allocate a local port, launch the subprocess and wait for the port
// to bind.
func (s *Supervisor) Start(ctx context.Context, spec core.TunnelSpec) (core.Forwarder, error) {
	if err := s.probe(ctx); err != nil {
		return nil, err
	}

	pod, err := s.discoverPod(ctx, spec)
	if err != nil {
		return nil, err
	}

	hostPort, err := s.allocatePort()
	if err != nil {
		return nil, startupErr(spec, err.Error())
	}

	fw, err := s.launch(spec, pod, hostPort)
	if err != nil {
		return nil, err
	}

	s.log.Info("tunnel established", "namespace", spec.Namespace, "pod", pod, "hostPort", hostPort, "podPort", spec.PodPort)
	return fw, nil
}

// probe runs a version check against the port-forward command once
// per process. Subsequent Start calls reuse the result.
func (s *Supervisor) probe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.probed {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, s.kubectl, "version", "--client", "--output=json").Output()
	if err != nil {
		return &core.ErrTunnelStartup{Reason: fmt.Sprintf("%s version probe failed: %v", s.kubectl, err)}
	}

	var parsed struct {
		ClientVersion struct {
			GitVersion string `json:"gitVersion"`
		} `json:"clientVersion"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return &core.ErrTunnelStartup{Reason: fmt.Sprintf("unparseable version probe output: %v", err)}
	}

	version, err := semver.NewVersion(strings.TrimPrefix(parsed.ClientVersion.GitVersion, "v"))
	if err != nil {
		return &core.ErrTunnelStartup{Reason: fmt.Sprintf("unparseable client version %q: %v", parsed.ClientVersion.GitVersion, err)}
	}
	if version.LessThan(minClientVersion) {
		return &core.ErrTunnelStartup{Reason: fmt.Sprintf("client version %s older than required %s", version, minClientVersion)}
	}

	s.probed = true
	return nil
}

// discoverPod lists pods in the namespace and picks the first, in
// lexicographic order, whose name starts with the configured prefix.
func (s *Supervisor) discoverPod(ctx context.Context, spec core.TunnelSpec) (string, error) {
	client, err := s.clientset()
	if err != nil {
		return "", startupErr(spec, fmt.Sprintf("kubernetes client: %v", err))
	}

	pods, err := client.CoreV1().Pods(spec.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", startupErr(spec, fmt.Sprintf("list pods: %v", err))
	}

	names := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		names = append(names, pods.Items[i].Name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasPrefix(name, spec.PodPrefix) {
			return name, nil
		}
	}
	return "", startupErr(spec, fmt.Sprintf("no pod with prefix %q in namespace %q", spec.PodPrefix, spec.Namespace))
}

func (s *Supervisor) clientset() (kubernetes.Interface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		client, err := s.factory()
		if err != nil {
			return nil, err
		}
		s.client = client
	}
	return s.client, nil
}

// allocatePort picks a free TCP port uniformly at random in
// [portMin, portMax], verifying availability with a short-lived bind.
func (s *Supervisor) allocatePort() (int, error) {
	for range portAttempts {
		port := portMin + rand.IntN(portMax-portMin+1)
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		_ = ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in [%d, %d] after %d attempts", portMin, portMax, portAttempts)
}

// launch starts the subprocess and polls until the host port is bound
// or the process dies.
func (s *Supervisor) launch(spec core.TunnelSpec, pod string, hostPort int) (*Forwarder, error) {
	cmd := exec.Command(s.kubectl, "port-forward",
		"--namespace", spec.Namespace,
		"pod/"+pod,
		fmt.Sprintf("%d:%d", hostPort, spec.PodPort),
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output // merge stderr into stdout

	if err := cmd.Start(); err != nil {
		return nil, startupErr(spec, fmt.Sprintf("start %s: %v", s.kubectl, err))
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	fw := &Forwarder{
		key:      spec.Key(),
		hostPort: hostPort,
		cmd:      cmd,
		done:     done,
		log:      s.log,
	}

	deadline := time.Now().Add(startTimeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			return nil, startupErr(spec, fmt.Sprintf("subprocess exited: %v; output: %s", err, strings.TrimSpace(output.String())))
		case <-time.After(startPollStep):
		}

		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", hostPort), startPollStep)
		if err == nil {
			_ = conn.Close()
			return fw, nil
		}
	}

	_ = fw.Stop(context.Background())
	return nil, startupErr(spec, fmt.Sprintf("port %d not bound within %s", hostPort, startTimeout))
}

func startupErr(spec core.TunnelSpec, reason string) *core.ErrTunnelStartup {
	return &core.ErrTunnelStartup{Namespace: spec.Namespace, PodPrefix: spec.PodPrefix, Reason: reason}
}

// Forwarder is one supervised subprocess. It implements
// core.Forwarder.
type Forwarder struct {
	key      string
	hostPort int
	cmd      *exec.Cmd
	done     chan error
	log      *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

// HostPort returns the bound local port.
func (f *Forwarder) HostPort() int { return f.hostPort }

// Stop force-kills the subprocess and waits for it to exit, bounded
// by stopTimeout and the caller's context. Idempotent.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.stopOnce.Do(func() {
		if f.cmd.Process != nil {
			_ = f.cmd.Process.Kill()
		}

		waitCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()

		select {
		case <-f.done:
			f.log.Debug("tunnel stopped", "tunnel", f.key)
		case <-waitCtx.Done():
			f.stopErr = fmt.Errorf("tunnel %s did not exit within %s", f.key, stopTimeout)
		}
	})
	return f.stopErr
}
