package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autoventas/sales-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/autoventas/sales-ai-platform/internal/http/middleware"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	ChatHandler    *handlers.ChatHandler
	WebhookHandler *handlers.WebhookHandler
	MetricsHandler http.Handler

	// Requests/sec and burst applied to the public webhook route.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ChatHandler != nil {
		r.Route("/api/v1", func(api chi.Router) {
			api.Post("/chat", cfg.ChatHandler.Chat)
		})
	}

	if cfg.WebhookHandler != nil {
		r.Group(func(public chi.Router) {
			if cfg.WebhookRateLimit > 0 {
				public.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
			}
			public.Post("/webhook/twilio", cfg.WebhookHandler.Webhook)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
