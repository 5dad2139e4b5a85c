package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-match/internal/suggest"
	"github.com/sells-group/vendor-match/internal/vetting"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Health reports liveness and, when a pinger is configured, store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			zap.L().Error("health check failed", zap.String("component", "api"), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Suggestions returns ranked vendor suggestions for a service request.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "request id is required")
		return
	}

	res, err := h.svc.Suggest(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// VendorScore returns a vendor's performance score, tier and vetting breakdown.
func (h *Handler) VendorScore(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}

	res, err := h.svc.VendorScore(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// VettingScore computes a vetting breakdown from the posted attributes
// without touching the store.
func (h *Handler) VettingScore(w http.ResponseWriter, r *http.Request) {
	var in vetting.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.YearsInBusiness != nil && *in.YearsInBusiness < 0 {
		writeError(w, http.StatusBadRequest, "years_in_business must be >= 0")
		return
	}
	writeJSON(w, http.StatusOK, h.vetting.Calculate(in))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, suggest.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, suggest.ErrVendorNotFound):
		writeError(w, http.StatusNotFound, "vendor not found")
	default:
		zap.L().Error("request failed",
			zap.String("component", "api"),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
