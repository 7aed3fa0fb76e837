package server

import (
	"net/http"

	"github.com/ITSsafer-DevOps/K.A.O.S/backend/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux registers the brain's routes.
func NewMux(hc *HandlerConfig, prometheusEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/analyze", AnalyzeHandler(hc))
	mux.HandleFunc("GET /api/v1/health", HealthHandler())
	mux.HandleFunc("GET /api/v1/metrics", MetricsHandler(hc.Metrics))
	if prometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

// New builds the HTTP server for cfg.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
