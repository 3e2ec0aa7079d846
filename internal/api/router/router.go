package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autolumiku/dealership-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/autolumiku/dealership-ai-platform/internal/http/middleware"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	GatewayWebhook *handlers.GatewayWebhookHandler
	Health         *handlers.HealthHandler
	MetricsHandler http.Handler
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Live)
		r.Get("/readyz", cfg.Health.Ready)
	}

	if cfg.GatewayWebhook != nil {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/gateway", cfg.GatewayWebhook.HandleInbound)
		})
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
