package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ComUnity/signup-risk-gate/internal/middleware"
)

type RouterConfig struct {
	Signup  *SignupHandler
	Health  *HealthHandler
	Network middleware.NetworkConfig
	// Auth is nil when caller authentication is disabled.
	Auth *middleware.AuthConfig
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// RequestTimeout bounds one request, oracle call included.
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Use(middleware.NetworkContext(cfg.Network))
	r.Use(middleware.RequestAudit)

	r.Get("/healthz", cfg.Health.ServeHTTP)
	r.Get("/livez", cfg.Health.LivenessHandler)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/signup", func(rt chi.Router) {
		if cfg.RequestTimeout > 0 {
			rt.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		if cfg.Auth != nil {
			rt.Use(middleware.CallerAuth(*cfg.Auth))
		}
		rt.Post("/verify", cfg.Signup.Verify)
	})
	return r
}
