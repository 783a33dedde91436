package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mocktide/mocktide/internal/core"
)

var _ = Describe("Listener fleet", func() {
	var (
		manager *core.Manager
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		manager, err = newHost(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Shutdown(stopCtx)
	})

	createListener := func(cfg core.ListenerConfig) {
		GinkgoHelper()
		_, err := manager.CreateListener(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(waitForPort(cfg.Port, 5*time.Second)).To(Succeed())
	}

	It("serves static expectations with listener-wide headers", func() {
		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		createListener(core.ListenerConfig{
			ListenerID:    "srv-static",
			Port:          port,
			GlobalHeaders: []core.Header{{Name: "X-Env", Value: "integration"}},
		})
		Expect(manager.AddExpectation("srv-static", &core.Expectation{
			Request:  core.RequestMatcher{Method: "GET", Path: "/ping"},
			Response: core.ResponseSpec{StatusCode: 201, Body: "pong"},
		})).To(Succeed())

		resp, body, err := get(fmt.Sprintf("http://127.0.0.1:%d/ping", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(201))
		Expect(body).To(Equal("pong"))
		Expect(resp.Header.Get("X-Env")).To(Equal("integration"))

		resp, body, err = get(fmt.Sprintf("http://127.0.0.1:%d/other", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(404))
		Expect(body).To(Equal("No expectation matched"))
	})

	It("enforces basic authentication", func() {
		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		createListener(core.ListenerConfig{
			ListenerID: "srv-auth",
			Port:       port,
			BasicAuth:  &core.BasicAuth{Username: "ops", Password: "s3cret"},
		})
		Expect(manager.AddExpectation("srv-auth", &core.Expectation{
			Request:  core.RequestMatcher{Method: "GET", Path: "/x"},
			Response: core.ResponseSpec{Body: "guarded"},
		})).To(Succeed())

		url := fmt.Sprintf("http://127.0.0.1:%d/x", port)
		resp, _, err := get(url, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(401))
		Expect(resp.Header.Get("WWW-Authenticate")).To(Equal("Basic"))

		creds := base64.StdEncoding.EncodeToString([]byte("ops:s3cret"))
		resp, body, err := get(url, map[string]string{"Authorization": "Basic " + creds})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(body).To(Equal("guarded"))
	})

	It("renders templated bodies from path variables and headers", func() {
		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		createListener(core.ListenerConfig{ListenerID: "srv-tmpl", Port: port})
		Expect(manager.AddExpectation("srv-tmpl", &core.Expectation{
			Request:  core.RequestMatcher{Method: "GET", Path: "/greet/{id}"},
			Response: core.ResponseSpec{Body: "Hello ${pathVariables.id} / ${headers['X-Who']}"},
		})).To(Succeed())

		_, body, err := get(
			fmt.Sprintf("http://127.0.0.1:%d/greet/42", port),
			map[string]string{"X-Who": "ada"},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("Hello 42 / ada"))
	})

	It("resolves file downloads from a path prefix", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "q1-report.pdf"), []byte("%PDF-quarterly"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "q2-report.pdf"), []byte("%PDF-other"), 0o644)).To(Succeed())

		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		createListener(core.ListenerConfig{ListenerID: "srv-file", Port: port})
		Expect(manager.AddExpectation("srv-file", &core.Expectation{
			Request:  core.RequestMatcher{Method: "GET", Path: "/download"},
			Response: core.ResponseSpec{File: filepath.Join(dir, "q1")},
		})).To(Succeed())

		resp, body, err := get(fmt.Sprintf("http://127.0.0.1:%d/download", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(body).To(Equal("%PDF-quarterly"))
		Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
		Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="q1-report.pdf"`))
	})

	It("plays back scripted server-sent events", func() {
		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		createListener(core.ListenerConfig{ListenerID: "srv-sse", Port: port})
		Expect(manager.AddExpectation("srv-sse", &core.Expectation{
			Request:  core.RequestMatcher{Method: "GET", Path: "/events", SSE: true},
			Response: core.ResponseSpec{Messages: []string{"a", "b", "c"}},
		})).To(Succeed())

		resp, body, err := get(fmt.Sprintf("http://127.0.0.1:%d/events", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(body).To(Equal("data: a\n\ndata: b\n\ndata: c\n\n"))
	})

	It("replaces expectations for the same method and path", func() {
		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		createListener(core.ListenerConfig{ListenerID: "srv-replace", Port: port})

		exp := func(body string) *core.Expectation {
			return &core.Expectation{
				Request:  core.RequestMatcher{Method: "GET", Path: "/v"},
				Response: core.ResponseSpec{Body: body},
			}
		}
		Expect(manager.AddExpectation("srv-replace", exp("first"))).To(Succeed())
		Expect(manager.AddExpectation("srv-replace", exp("second"))).To(Succeed())

		_, body, err := get(fmt.Sprintf("http://127.0.0.1:%d/v", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("second"))

		exps, err := manager.Expectations("srv-replace")
		Expect(err).NotTo(HaveOccurred())
		Expect(exps).To(HaveLen(1))
	})
})

var _ = Describe("Relay listeners", func() {
	var (
		manager *core.Manager
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		manager, err = newHost(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Shutdown(stopCtx)
	})

	It("relays with a cached client-credentials bearer token", func() {
		var tokenFetches atomic.Int64
		issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenFetches.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "T", "token_type": "bearer"})
		}))
		defer issuer.Close()

		var lastAuth atomic.Value
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastAuth.Store(r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("relayed:" + r.URL.Path))
		}))
		defer upstream.Close()

		port, err := freePort()
		Expect(err).NotTo(HaveOccurred())
		_, err = manager.CreateListener(ctx, core.ListenerConfig{
			ListenerID: "srv-relay",
			Port:       port,
			Relays: []core.RelayRule{{
				RemoteURL:    upstream.URL,
				Prefixes:     []string{"/api/**"},
				TokenURL:     issuer.URL,
				ClientID:     "cid",
				ClientSecret: "sec",
			}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(waitForPort(port, 5*time.Second)).To(Succeed())

		_, body, err := get(fmt.Sprintf("http://127.0.0.1:%d/api/orders", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("relayed:/api/orders"))
		Expect(lastAuth.Load()).To(Equal("Bearer T"))

		// The second request reuses the cached token.
		_, _, err = get(fmt.Sprintf("http://127.0.0.1:%d/api/orders", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tokenFetches.Load()).To(Equal(int64(1)))

		// Outside every relay prefix nothing forwards.
		resp, body, err := get(fmt.Sprintf("http://127.0.0.1:%d/other", port), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(body).To(Equal("No matching relay"))
	})
})
