package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dev
}

// webhookAllowedHeaders covers the headers the payment gateway and browser
// based replay tools send to the webhook endpoint.
var webhookAllowedHeaders = []string{
	"Content-Type",
	"X-Signature",
	"X-Razorpay-Signature",
	"X-Razorpay-Event-Id",
}

// CORS returns middleware that applies the admin API's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

// WebhookCORS allows any origin to reach the webhook endpoint. Preflight
// requests are answered here and never reach the handler.
func WebhookCORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: webhookAllowedHeaders,
		MaxAge:         300,
	}).Handler
}
