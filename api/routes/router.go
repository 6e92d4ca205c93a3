package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-payments/api/controllers"
	refundcontrollers "github.com/angelmondragon/storefront-payments/api/controllers/refunds"
	webhookcontrollers "github.com/angelmondragon/storefront-payments/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-payments/api/middleware"
	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/enums"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

// Dependencies groups the services the HTTP surface is built on. Nil
// services yield routes that answer 500.
type Dependencies struct {
	ReadinessChecks map[string]controllers.Pinger
	ResponseStore   middleware.ResponseStore
	WebhookService  webhookcontrollers.RazorpayWebhookService
	WebhookGuard    webhookcontrollers.RazorpayWebhookGuard
	RefundService   refundcontrollers.Service
	MetricsHandler  http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadinessChecks))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.WebhookCORS())
		webhook := webhookcontrollers.RazorpayWebhook(deps.WebhookService, deps.WebhookGuard, webhookcontrollers.RazorpayWebhookOptions{
			Secret:       cfg.Razorpay.WebhookSecret,
			MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		}, logg)
		r.Post("/razorpay", webhook)
		r.Options("/razorpay", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			middleware.CORS(cfg.App.CORSAllowedOrigins),
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(enums.StaffRoleAdmin, logg),
		)
		// Only the money-moving routes require an Idempotency-Key.
		idempotent := r.With(middleware.Idempotency(deps.ResponseStore, logg))
		idempotent.Post("/returns/{returnId}/refund", refundcontrollers.Initiate(deps.RefundService, logg))
		idempotent.Post("/refunds/{transactionId}/retry", refundcontrollers.Retry(deps.RefundService, logg))
		r.Get("/returns/{returnId}/refunds", refundcontrollers.List(deps.RefundService, logg))
	})

	return r
}
