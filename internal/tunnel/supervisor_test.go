package tunnel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/mocktide/mocktide/internal/core"
)

// fakeKubectl writes an executable script that prints the given
// version probe output and returns its path.
func fakeKubectl(t *testing.T, gitVersion string) string {
	t.Helper()
	script := "#!/bin/sh\nprintf '{\"clientVersion\":{\"gitVersion\":\"" + gitVersion + "\"}}'\n"
	path := filepath.Join(t.TempDir(), "kubectl")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pod(namespace, name string) *corev1.Pod {
	return &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name}}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name       string
		gitVersion string
		wantErr    bool
	}{
		{name: "modern client", gitVersion: "v1.30.2"},
		{name: "minimum client", gitVersion: "v1.24.0"},
		{name: "too old", gitVersion: "v1.21.0", wantErr: true},
		{name: "garbage version", gitVersion: "not-a-version", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSupervisor(fakeKubectl(t, tt.gitVersion), nil)
			err := s.probe(context.Background())
			if tt.wantErr {
				var startup *core.ErrTunnelStartup
				if !errors.As(err, &startup) {
					t.Fatalf("err = %v, want *core.ErrTunnelStartup", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("probe: %v", err)
			}
			// The result is cached per process.
			if !s.probed {
				t.Error("probed flag not set")
			}
		})
	}
}

func TestProbe_CommandMissing(t *testing.T) {
	s := NewSupervisor(filepath.Join(t.TempDir(), "nope"), nil)
	var startup *core.ErrTunnelStartup
	if err := s.probe(context.Background()); !errors.As(err, &startup) {
		t.Fatalf("err = %v, want *core.ErrTunnelStartup", err)
	}
}

func TestDiscoverPod(t *testing.T) {
	client := fake.NewSimpleClientset(
		pod("apps", "worker-2"),
		pod("apps", "api-b"),
		pod("apps", "api-a"),
		pod("other", "api-z"),
	)

	tests := []struct {
		name    string
		spec    core.TunnelSpec
		want    string
		wantErr bool
	}{
		{
			name: "first in sorted order wins",
			spec: core.TunnelSpec{Namespace: "apps", PodPrefix: "api", PodPort: 8080},
			want: "api-a",
		},
		{
			name: "exact prefix",
			spec: core.TunnelSpec{Namespace: "apps", PodPrefix: "worker-2", PodPort: 8080},
			want: "worker-2",
		},
		{
			name:    "no pod with prefix",
			spec:    core.TunnelSpec{Namespace: "apps", PodPrefix: "db", PodPort: 5432},
			wantErr: true,
		},
		{
			name:    "wrong namespace",
			spec:    core.TunnelSpec{Namespace: "empty", PodPrefix: "api", PodPort: 8080},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSupervisor("kubectl", func() (kubernetes.Interface, error) {
				return client, nil
			})
			got, err := s.discoverPod(context.Background(), tt.spec)
			if tt.wantErr {
				var startup *core.ErrTunnelStartup
				if !errors.As(err, &startup) {
					t.Fatalf("err = %v, want *core.ErrTunnelStartup", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("discoverPod: %v", err)
			}
			if got != tt.want {
				t.Errorf("pod = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiscoverPod_ClientFactoryError(t *testing.T) {
	s := NewSupervisor("kubectl", func() (kubernetes.Interface, error) {
		return nil, errors.New("no kubeconfig")
	})
	var startup *core.ErrTunnelStartup
	_, err := s.discoverPod(context.Background(), core.TunnelSpec{Namespace: "apps", PodPrefix: "api"})
	if !errors.As(err, &startup) {
		t.Fatalf("err = %v, want *core.ErrTunnelStartup", err)
	}
}

func TestClientsetIsLazyAndCached(t *testing.T) {
	calls := 0
	client := fake.NewSimpleClientset(pod("apps", "api-a"))
	s := NewSupervisor("kubectl", func() (kubernetes.Interface, error) {
		calls++
		return client, nil
	})
	if calls != 0 {
		t.Fatalf("factory called eagerly")
	}

	spec := core.TunnelSpec{Namespace: "apps", PodPrefix: "api"}
	for range 3 {
		if _, err := s.discoverPod(context.Background(), spec); err != nil {
			t.Fatalf("discoverPod: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
}

func TestAllocatePortRange(t *testing.T) {
	s := NewSupervisor("kubectl", nil)
	for range 20 {
		port, err := s.allocatePort()
		if err != nil {
			t.Fatalf("allocatePort: %v", err)
		}
		if port < portMin || port > portMax {
			t.Fatalf("port %d outside [%d, %d]", port, portMin, portMax)
		}
	}
}

func TestForwarderStop(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	fw := &Forwarder{
		key:      "apps:api",
		hostPort: 9123,
		cmd:      cmd,
		done:     done,
		log:      testLogger(),
	}

	start := time.Now()
	if err := fw.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > stopTimeout {
		t.Errorf("Stop took %s, want under %s", elapsed, stopTimeout)
	}

	// Idempotent.
	if err := fw.Stop(context.Background()); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestStartupErrCarriesSpec(t *testing.T) {
	err := startupErr(core.TunnelSpec{Namespace: "apps", PodPrefix: "api"}, "boom")
	if !strings.Contains(err.Error(), "apps") || !strings.Contains(err.Error(), "api") {
		t.Errorf("error %q does not name the tunnel", err.Error())
	}
}
