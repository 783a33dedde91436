package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mocktide/mocktide/internal/core"
)

// errorEnvelope is the admin API error body.
type errorEnvelope struct {
	ErrorCode string    `json:"errorCode"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// statusFor maps domain errors to HTTP statuses. Wrapped causes are
// checked before the creation wrapper itself so that a tunnel failure
// inside listener creation still surfaces as 502.
func statusFor(err error) (int, string) {
	var (
		exists     *core.ErrListenerExists
		notFound   *core.ErrListenerNotFound
		invalid    *core.ErrInvalidExpectation
		parse      *core.ErrParse
		badCert    *core.ErrInvalidCertificate
		missing    *core.ErrVariableNotFound
		tunnel     *core.ErrTunnelStartup
		tokenAcq   *core.ErrTokenAcquisition
		relayFail  *core.ErrRelayTransport
		creation   *core.ErrListenerCreation
		tmplBroken *core.ErrTemplate
	)
	switch {
	case errors.As(err, &exists):
		return http.StatusConflict, "LISTENER_EXISTS"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "LISTENER_NOT_FOUND"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "INVALID_EXPECTATION"
	case errors.As(err, &parse):
		return http.StatusBadRequest, "PARSE_ERROR"
	case errors.As(err, &badCert):
		return http.StatusBadRequest, "INVALID_CERTIFICATE"
	case errors.As(err, &missing):
		return http.StatusBadRequest, "VARIABLE_NOT_FOUND"
	case errors.As(err, &tunnel):
		return http.StatusBadGateway, "TUNNEL_STARTUP_FAILED"
	case errors.As(err, &tokenAcq):
		return http.StatusBadGateway, "TOKEN_ACQUISITION_FAILED"
	case errors.As(err, &relayFail):
		return http.StatusBadGateway, "RELAY_FAILED"
	case errors.As(err, &tmplBroken):
		return http.StatusBadRequest, "TEMPLATE_ERROR"
	case errors.As(err, &creation):
		return http.StatusBadRequest, "LISTENER_CREATION_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		log.Error("admin request failed", "code", code, "error", err)
	} else {
		log.Warn("admin request rejected", "code", code, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		ErrorCode: code,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
}
