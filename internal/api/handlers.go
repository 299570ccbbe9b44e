/**
 * @description
 * This file contains the HTTP handlers for the payments service's API
 * endpoints. Handlers parse incoming requests, call the onboarding service,
 * and write the HTTP response. Two kinds of caller land here: other tec-shop
 * services on the internal endpoints, and seller browsers bounced back from
 * Stripe's hosted onboarding on the redirect endpoints.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/andriel300/tec-shop-sub000/internal/app"
	"github.com/andriel300/tec-shop-sub000/internal/store"
)

// PaymentAccountHandlers holds the onboarding service and the frontend URLs
// the browser redirect endpoints bounce sellers to.
type PaymentAccountHandlers struct {
	service     *app.OnboardingService
	completeURL string
	errorURL    string
}

// sellerRequest is the payload of both internal endpoints.
type sellerRequest struct {
	SellerID string `json:"seller_id"`
}

// NewPaymentAccountHandlers creates a new instance of PaymentAccountHandlers.
func NewPaymentAccountHandlers(service *app.OnboardingService, completeURL, errorURL string) *PaymentAccountHandlers {
	return &PaymentAccountHandlers{
		service:     service,
		completeURL: completeURL,
		errorURL:    errorURL,
	}
}

// OnboardSellerHandler handles internal requests to start (or resume) a
// seller's Stripe onboarding and responds with a fresh onboarding link.
func (h *PaymentAccountHandlers) OnboardSellerHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSellerRequest(w, r)
	if !ok {
		return
	}

	callerID, _ := CallerServiceID(r.Context())
	log.Printf("level=info component=api endpoint=onboard outcome=accepted seller_id=%s caller=%s", req.SellerID, callerID)

	link, err := h.service.StartOnboarding(r.Context(), req.SellerID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=onboard outcome=failed seller_id=%s err=%v", req.SellerID, err)
		if errors.Is(err, store.ErrSellerNotFound) {
			h.writeError(w, http.StatusNotFound, "Seller not found")
			return
		}
		if errors.Is(err, app.ErrProviderUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, link)
}

// AccountStatusHandler handles internal requests for a seller's onboarding
// status summary.
func (h *PaymentAccountHandlers) AccountStatusHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSellerRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetStatus(r.Context(), req.SellerID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=status outcome=failed seller_id=%s err=%v", req.SellerID, err)
		if errors.Is(err, app.ErrProviderUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// ReturnHandler handles the browser coming back from Stripe's hosted
// onboarding. The outcome is always a redirect to the frontend; a seller
// never sees an error page from this service.
func (h *PaymentAccountHandlers) ReturnHandler(w http.ResponseWriter, r *http.Request) {
	sellerID := r.URL.Query().Get("seller_id")
	state := r.URL.Query().Get("state")

	summary, err := h.service.HandleReturn(r.Context(), sellerID, state)
	if err != nil {
		log.Printf("level=warn component=api endpoint=onboarding_return outcome=failed seller_id=%s err=%v", sellerID, err)
		h.redirectWithReason(w, r, err)
		return
	}

	dest := h.completeURL + "?status=" + url.QueryEscape(string(summary.Status))
	log.Printf("level=info component=api endpoint=onboarding_return outcome=redirect seller_id=%s status=%s", sellerID, summary.Status)
	http.Redirect(w, r, dest, http.StatusFound)
}

// RefreshHandler handles the browser landing on an expired onboarding link.
// A brand-new Stripe URL is issued and the seller is sent straight there.
func (h *PaymentAccountHandlers) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	sellerID := r.URL.Query().Get("seller_id")
	state := r.URL.Query().Get("state")

	link, err := h.service.HandleRefresh(r.Context(), sellerID, state)
	if err != nil {
		log.Printf("level=warn component=api endpoint=onboarding_refresh outcome=failed seller_id=%s err=%v", sellerID, err)
		h.redirectWithReason(w, r, err)
		return
	}

	log.Printf("level=info component=api endpoint=onboarding_refresh outcome=redirect seller_id=%s expires_at=%d", sellerID, link.ExpiresAt)
	http.Redirect(w, r, link.URL, http.StatusFound)
}

// redirectWithReason sends the browser to the frontend error page with a
// coarse machine-readable reason. Details stay in the logs.
func (h *PaymentAccountHandlers) redirectWithReason(w http.ResponseWriter, r *http.Request, err error) {
	reason := "internal_error"
	switch {
	case errors.Is(err, app.ErrInvalidStateToken):
		reason = "invalid_state"
	case errors.Is(err, app.ErrNoPaymentAccount):
		reason = "no_account"
	case errors.Is(err, app.ErrProviderUnavailable):
		reason = "provider_unavailable"
	}
	http.Redirect(w, r, h.errorURL+"?reason="+reason, http.StatusFound)
}

// decodeSellerRequest decodes the verified envelope payload of an internal
// endpoint into a sellerRequest. It writes the error response itself and
// reports ok=false when the payload is unusable.
func (h *PaymentAccountHandlers) decodeSellerRequest(w http.ResponseWriter, r *http.Request) (sellerRequest, bool) {
	var req sellerRequest

	payload, ok := EnvelopePayload(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get payload from context")
		return req, false
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload")
		return req, false
	}
	if strings.TrimSpace(req.SellerID) == "" {
		h.writeError(w, http.StatusBadRequest, "seller_id is required")
		return req, false
	}
	return req, true
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentAccountHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentAccountHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
