// Package handler exposes the admin REST API: fleet CRUD, expectation
// management, health and metrics.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mocktide/mocktide/internal/core"
	"github.com/mocktide/mocktide/internal/metrics"
)

// Admin is the admin API handler set.
type Admin struct {
	manager *core.Manager
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewAdmin(manager *core.Manager, m *metrics.Metrics) *Admin {
	return &Admin{
		manager: manager,
		metrics: m,
		log:     slog.Default().With("component", "admin-api"),
	}
}

// createRequest is the POST /api/v1/servers payload: a listener plus
// optional initial expectations.
type createRequest struct {
	Server       core.ListenerConfig `json:"server"`
	Expectations []*core.Expectation `json:"expectations,omitempty"`
}

// Mux assembles the admin routes.
func (a *Admin) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/servers", a.listServers)
	mux.HandleFunc("POST /api/v1/servers", a.createServer)
	mux.HandleFunc("GET /api/v1/servers/{id}", a.getServer)
	mux.HandleFunc("DELETE /api/v1/servers/{id}", a.deleteServer)
	mux.HandleFunc("GET /api/v1/servers/{id}/expectations", a.listExpectations)
	mux.HandleFunc("PUT /api/v1/servers/{id}/expectations", a.putExpectations)
	mux.HandleFunc("DELETE /api/v1/servers/{id}/expectations", a.clearExpectations)

	mux.HandleFunc("GET /healthz", a.healthz)
	mux.Handle("GET /metrics", a.metrics.Handler())

	return mux
}

func (a *Admin) listServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.manager.List())
}

func (a *Admin) createServer(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, a.log, &core.ErrParse{Detail: err.Error()})
		return
	}

	if _, err := a.manager.CreateListener(r.Context(), req.Server); err != nil {
		writeError(w, a.log, err)
		return
	}

	for _, exp := range req.Expectations {
		if err := a.manager.AddExpectation(req.Server.ListenerID, exp); err != nil {
			// Roll the half-created listener back so create stays
			// all-or-nothing.
			if relErr := a.manager.ReleaseListener(r.Context(), req.Server.ListenerID); relErr != nil {
				a.log.Error("rollback failed", "listener", req.Server.ListenerID, "error", relErr)
			}
			writeError(w, a.log, err)
			return
		}
	}

	view, err := a.manager.Get(req.Server.ListenerID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *Admin) getServer(w http.ResponseWriter, r *http.Request) {
	view, err := a.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *Admin) deleteServer(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.ReleaseListener(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) listExpectations(w http.ResponseWriter, r *http.Request) {
	exps, err := a.manager.Expectations(r.PathValue("id"))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	if exps == nil {
		exps = []*core.Expectation{}
	}
	writeJSON(w, http.StatusOK, exps)
}

// putExpectations replaces the listener's expectations with the given
// list.
func (a *Admin) putExpectations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var exps []*core.Expectation
	if err := json.NewDecoder(r.Body).Decode(&exps); err != nil {
		writeError(w, a.log, &core.ErrParse{Detail: err.Error()})
		return
	}
	for _, exp := range exps {
		if err := exp.Validate(); err != nil {
			writeError(w, a.log, err)
			return
		}
	}

	if err := a.manager.ClearExpectations(id); err != nil {
		writeError(w, a.log, err)
		return
	}
	for _, exp := range exps {
		if err := a.manager.AddExpectation(id, exp); err != nil {
			writeError(w, a.log, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(exps)})
}

func (a *Admin) clearExpectations(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.ClearExpectations(r.PathValue("id")); err != nil {
		writeError(w, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"listeners": len(a.manager.List()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
