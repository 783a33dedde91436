package core

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mocktide/mocktide/internal/match"
)

// RequestObserver receives one call per handled request, after the
// response has been composed.
type RequestObserver func(listener, strategy string, statusCode int)

// Dispatcher is the per-listener request callback: it terminates the
// basic-auth gate, matches expectations, selects a strategy, merges
// global headers and writes the response. One Dispatcher serves all
// requests of its listener concurrently.
type Dispatcher struct {
	listenerID    string
	auth          *BasicAuth
	globalHeaders []Header
	registry      *Registry
	strategies    []Strategy
	relayEnabled  bool
	observe       RequestObserver
	log           *slog.Logger
}

// NewDispatcher builds the callback for one listener. Strategies are
// sorted once by descending priority. relayEnabled listeners bypass
// expectation matching entirely.
func NewDispatcher(listenerID string, cfg *ListenerConfig, registry *Registry, strategies []Strategy, relayEnabled bool, observe RequestObserver, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default().With("component", "dispatcher", "listener", listenerID)
	}
	return &Dispatcher{
		listenerID:    listenerID,
		auth:          cfg.BasicAuth,
		globalHeaders: cfg.GlobalHeaders,
		registry:      registry,
		strategies:    sortStrategies(strategies),
		relayEnabled:  relayEnabled,
		observe:       observe,
		log:           log,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, strategyName := d.dispatch(r)
	resp.MergeGlobal(d.globalHeaders)
	resp.Write(w)
	if d.observe != nil {
		d.observe(d.listenerID, strategyName, resp.StatusCode)
	}
}

// dispatch runs the fixed per-request pipeline and never lets an
// error escape: every failure is converted into a response.
func (d *Dispatcher) dispatch(r *http.Request) (resp *Response, strategyName string) {
	strategyName = "none"

	if !d.authorized(r) {
		resp = TextResponse(http.StatusUnauthorized, "Unauthorized")
		resp.SetHeader("WWW-Authenticate", "Basic")
		return resp, strategyName
	}

	reqCtx, err := NewRequestContext(r)
	if err != nil {
		d.log.Error("read request body", "error", err)
		return callbackError(err.Error()), strategyName
	}

	exp := &Expectation{}
	if !d.relayEnabled {
		exp = d.matchExpectation(reqCtx)
		if exp == nil {
			return TextResponse(http.StatusNotFound, "No expectation matched"), strategyName
		}
	}

	strategy := d.selectStrategy(exp)
	if strategy == nil {
		// The static strategy accepts everything, so this only
		// happens with a corrupt registration.
		d.log.Error("no strategy for expectation", "method", exp.Request.Method, "path", exp.Request.Path)
		return TextResponse(http.StatusInternalServerError, "No strategy found for configuration"), strategyName
	}
	strategyName = strategy.Name()

	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("strategy panicked", "strategy", strategyName, "panic", rec)
			resp = callbackError("internal error")
		}
	}()

	resp, err = strategy.Handle(r.Context(), reqCtx, exp)
	if err != nil {
		d.log.Error("strategy failed", "strategy", strategyName, "error", err)
		return callbackError(err.Error()), strategyName
	}
	return resp, strategyName
}

// authorized checks the basic-auth gate with a constant-time compare.
func (d *Dispatcher) authorized(r *http.Request) bool {
	if d.auth == nil {
		return true
	}
	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte(d.auth.Username+":"+d.auth.Password))
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// matchExpectation walks the registry snapshot in insertion order and
// returns the first expectation matching method, path and the optional
// header/query/body predicates. Path variables are bound onto the
// request context as a side effect.
func (d *Dispatcher) matchExpectation(reqCtx *RequestContext) *Expectation {
	for _, exp := range d.registry.Snapshot() {
		vars, ok := d.matches(exp, reqCtx)
		if !ok {
			continue
		}
		reqCtx.PathVariables = vars
		return exp
	}
	return nil
}

func (d *Dispatcher) matches(exp *Expectation, reqCtx *RequestContext) (map[string]string, bool) {
	if !methodEqual(exp.Request.Method, reqCtx.Method) {
		return nil, false
	}
	vars, ok := match.PathVariables(exp.Request.Path, reqCtx.Path)
	if !ok {
		return nil, false
	}
	for name, want := range exp.Request.Headers {
		if reqCtx.Header.Get(name) != want {
			return nil, false
		}
	}
	if len(exp.Request.Query) > 0 {
		query := parseQuery(reqCtx.RawQuery)
		for name, want := range exp.Request.Query {
			if query[name] != want {
				return nil, false
			}
		}
	}
	if exp.Request.Body != "" && trimmed(exp.Request.Body) != trimmed(string(reqCtx.Body)) {
		return nil, false
	}
	return vars, true
}

// selectStrategy returns the highest-priority supporting strategy.
// The strategy slice is already sorted by descending priority.
func (d *Dispatcher) selectStrategy(exp *Expectation) Strategy {
	for _, s := range d.strategies {
		if s.Supports(exp) {
			return s
		}
	}
	return nil
}

// callbackError is the uniform 500 envelope for strategy failures.
func callbackError(msg string) *Response {
	payload, _ := json.Marshal(map[string]string{
		"errorCode": "CALLBACK_ERROR",
		"message":   msg,
	})
	resp := NewResponse(http.StatusInternalServerError)
	resp.SetHeader("Content-Type", "application/json")
	resp.Body = payload
	return resp
}
