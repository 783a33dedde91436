package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func TestNewServer_RequiresHandler(t *testing.T) {
	t.Parallel()
	if _, err := NewServer(WithAddress("127.0.0.1:0")); err == nil {
		t.Fatal("want error without handler")
	}
}

func TestServer_StartStop(t *testing.T) {
	t.Parallel()
	srv, err := NewServer(
		WithAddress("127.0.0.1:0"),
		WithHandler(okHandler()),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	url := fmt.Sprintf("http://%s/", srv.Addr())
	resp, err := waitForGet(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Start returned: %v", err)
	}
}

// waitForGet retries until the server accepts connections.
func waitForGet(url string) (*http.Response, error) {
	var lastErr error
	for range 50 {
		resp, err := http.Get(url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, lastErr
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()
	srv, err := NewServer(
		WithAddress("127.0.0.1:0"),
		WithHandler(okHandler()),
		WithCORS([]string{"https://ui.example.com"}),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer srv.Stop(context.Background())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for foreign origin = %q", got)
	}
}

func TestFactory_BindAndNew(t *testing.T) {
	t.Parallel()
	f := NewFactory()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv, err := f.New(ln, nil, okHandler())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Start(ctx) }()

	url := fmt.Sprintf("http://%s/", ln.Addr().String())
	resp, err := waitForGet(url)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestFactory_BindConflict(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if _, err := f.Bind(port); err == nil {
		t.Fatal("want bind conflict")
	}
}
