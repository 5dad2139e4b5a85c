// Package api exposes the suggestion and scoring operations over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/vendor-match/internal/config"
	"github.com/sells-group/vendor-match/internal/suggest"
	"github.com/sells-group/vendor-match/internal/vetting"
)

// Service is the suggestion and scoring backend the handlers call.
type Service interface {
	Suggest(ctx context.Context, requestID string) (*suggest.Suggestions, error)
	VendorScore(ctx context.Context, vendorID string) (*suggest.VendorScore, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API routes.
type Handler struct {
	svc     Service
	vetting *vetting.Calculator
	pinger  Pinger
}

// NewHandler returns a Handler. pinger may be nil, in which case /health
// does not check the store.
func NewHandler(svc Service, vet *vetting.Calculator, pinger Pinger) *Handler {
	return &Handler{svc: svc, vetting: vet, pinger: pinger}
}

// NewRouter builds the route tree with the global middleware stack.
func NewRouter(cfg config.ServerConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, "/health"))
	if cfg.RequestTimeoutSecs > 0 {
		r.Use(chimw.Timeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second))
	}

	r.Get("/health", h.Health)
	r.Get("/requests/{id}/suggestions", h.Suggestions)
	r.Get("/vendors/{id}/score", h.VendorScore)
	r.Post("/vetting/score", h.VettingScore)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// NewServer returns an http.Server for handler listening on port.
func NewServer(port int, cfg config.ServerConfig, handler http.Handler) *http.Server {
	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
