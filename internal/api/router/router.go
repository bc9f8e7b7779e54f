package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/agenda-agent/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/agenda-agent/internal/http/middleware"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

// ReadinessCheck probes one backing service for /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WhatsAppWebhook *handlers.WhatsAppWebhookHandler
	Admin           *handlers.AdminHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
	Readiness       []ReadinessCheck

	// WebhookLimiter throttles webhook traffic per tenant; nil disables it.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.WhatsAppWebhook == nil {
		panic("router: whatsapp webhook handler required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		public.Get("/ready", readiness(cfg.Readiness))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		webhook := public.With()
		if cfg.WebhookLimiter != nil {
			webhook = public.With(httpmiddleware.RateLimit(cfg.WebhookLimiter, httpmiddleware.WebhookKey, httpmiddleware.AcknowledgeRateLimited))
		}
		webhook.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.Handle)
		webhook.Post("/webhooks/whatsapp/{tenantID}", cfg.WhatsAppWebhook.Handle)
	})

	if cfg.Admin != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.With(httpmiddleware.RequireAllTenants).Post("/complaints/sweep", cfg.Admin.RunComplaintSweep)
			admin.Route("/tenants/{tenantID}", func(tenant chi.Router) {
				tenant.Use(httpmiddleware.RequireTenantAccess)
				tenant.Post("/settings/invalidate", cfg.Admin.InvalidateSettings)
				tenant.Get("/conversations/{conversationID}/transcript", cfg.Admin.Transcript)
			})
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func readiness(checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				results[c.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}
		writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": results})
	}
}
