/**
 * @description
 * This file sets up the HTTP router for the payments service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware such as envelope authentication on the internal routes.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PaymentRoutes creates and returns the router for the payments service.
func PaymentRoutes(h *PaymentAccountHandlers, webhook *StripeWebhookHandler, masterSecret []byte, allowedServiceIDs []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Service-to-service endpoints behind envelope authentication.
	r.Route("/internal/payment-accounts", func(r chi.Router) {
		r.Use(EnvelopeAuth(masterSecret, allowedServiceIDs))

		r.Post("/onboard", h.OnboardSellerHandler)
		r.Post("/status", h.AccountStatusHandler)
	})

	// Browser endpoints Stripe redirects sellers back to. These carry their
	// own state-token check instead of envelope auth.
	r.Get("/onboarding/return", h.ReturnHandler)
	r.Get("/onboarding/refresh", h.RefreshHandler)

	// Stripe webhook, authenticated by its signature header.
	r.Post("/webhooks/stripe", webhook.ServeHTTP)

	return r
}
