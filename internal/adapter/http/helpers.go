package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/recoverfleet/drsorch/internal/domain"
	"github.com/recoverfleet/drsorch/internal/domain/plan"
	"github.com/recoverfleet/drsorch/internal/service"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error      string           `json:"error"`
	Violations []violationEntry `json:"violations,omitempty"`
}

type violationEntry struct {
	WaveNumber int    `json:"wave_number"`
	WaveName   string `json:"wave_name,omitempty"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeViolations renders every validation violation so the client can fix
// them all at once.
func writeViolations(w http.ResponseWriter, violations []plan.Violation) {
	entries := make([]violationEntry, len(violations))
	for i, v := range violations {
		entries[i] = violationEntry{
			WaveNumber: v.WaveNumber,
			WaveName:   v.WaveName,
			Message:    v.Message,
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error:      "plan validation failed",
		Violations: entries,
	})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeViolations(w, verr.Violations)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource was modified by another request")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMalformedSnapshot):
		writeError(w, http.StatusBadGateway, "backend returned a malformed snapshot")
	case strings.Contains(err.Error(), "invalid input syntax"):
		writeError(w, http.StatusBadRequest, "invalid identifier format")
	case strings.Contains(err.Error(), "unique constraint") || strings.Contains(err.Error(), "SQLSTATE 23505"):
		writeError(w, http.StatusConflict, "resource already exists")
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
