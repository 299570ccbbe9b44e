/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * Stripe. It is the entry point for the real-time account notifications that
 * drive onboarding status forward.
 *
 * Key features:
 * - Security: Validates the Stripe-Signature header (HMAC-SHA256 over
 *   "<timestamp>.<body>" with a freshness bound) before touching the payload.
 * - Deduplication: Skips event ids already seen recently, backed by Redis so
 *   the check survives restarts and is shared across replicas.
 * - Routing: Hands verified events to the onboarding service, which decides
 *   what each event kind means.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: For signature validation.
 * - The service's internal packages for domain models and the dedupe store.
 */
package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andriel300/tec-shop-sub000/internal/app"
	"github.com/andriel300/tec-shop-sub000/internal/domain"
	"github.com/andriel300/tec-shop-sub000/internal/store"
)

// signatureTolerance bounds how old a webhook's signed timestamp may be.
// It limits the replay window for a captured request.
const signatureTolerance = 5 * time.Minute

// StripeWebhookHandler processes incoming webhooks from Stripe.
type StripeWebhookHandler struct {
	service *app.OnboardingService
	secret  string
	dedupe  *store.EventDedupe
}

// NewStripeWebhookHandler creates a new handler for the webhook endpoint.
// dedupe may be nil, in which case every delivery is processed; event
// handling is idempotent so duplicates are safe, just wasteful.
func NewStripeWebhookHandler(service *app.OnboardingService, secret string, dedupe *store.EventDedupe) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		service: service,
		secret:  secret,
		dedupe:  dedupe,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *StripeWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// 1. Read the request body; the signature covers the exact bytes Stripe
	// sent, so it must be verified before any decoding.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=warn component=api endpoint=stripe_webhook request_id=%s outcome=reject reason=unreadable_body err=%v", requestID, err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	// 2. Validate the signature.
	if !h.isValidSignature(r.Header.Get("Stripe-Signature"), body, time.Now()) {
		log.Printf("level=warn component=api endpoint=stripe_webhook request_id=%s outcome=reject reason=invalid_signature", requestID)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// 3. Decode the event envelope.
	var event domain.StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=api endpoint=stripe_webhook request_id=%s outcome=reject reason=invalid_json err=%v", requestID, err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if event.ID == "" || event.Type == "" {
		log.Printf("level=warn component=api endpoint=stripe_webhook request_id=%s outcome=reject reason=missing_event_fields", requestID)
		http.Error(w, "Invalid event payload", http.StatusBadRequest)
		return
	}

	log.Printf("level=info component=api endpoint=stripe_webhook request_id=%s event_id=%s event_type=%s account=%s", requestID, event.ID, event.Type, event.Account)

	// 4. Drop replays of events already handled. The check is best-effort:
	// if the dedupe store is down, processing continues, because event
	// handling converges under redelivery anyway.
	if h.dedupe != nil {
		duplicate, err := h.dedupe.IsDuplicate(r.Context(), event.ID)
		if err != nil {
			log.Printf("level=warn component=api endpoint=stripe_webhook request_id=%s event_id=%s msg=\"dedupe check failed, processing anyway\" err=%v", requestID, event.ID, err)
		} else if duplicate {
			log.Printf("level=info component=api endpoint=stripe_webhook request_id=%s event_id=%s msg=\"duplicate event ignored\"", requestID, event.ID)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Duplicate event ignored"))
			return
		}
	}

	// 5. Hand the event to the service. Unhandled kinds come back nil and
	// are acknowledged so Stripe stops redelivering them.
	if err := h.service.HandleWebhookEvent(r.Context(), &event); err != nil {
		log.Printf("level=error component=api endpoint=stripe_webhook request_id=%s event_id=%s outcome=failed err=%v", requestID, event.ID, err)
		http.Error(w, "Internal server error during event processing", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

// isValidSignature validates the Stripe-Signature header. The header carries
// comma-separated elements, e.g. "t=1712345678,v1=<hex hmac>"; the MAC is
// HMAC-SHA256 over "<t>.<body>" and the timestamp must be within
// signatureTolerance of now.
func (h *StripeWebhookHandler) isValidSignature(header string, body []byte, now time.Time) bool {
	if h.secret == "" {
		log.Println("Warning: STRIPE_WEBHOOK_SECRET is not set. Skipping signature validation.")
		return true
	}

	rawTimestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return false
	}

	timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(signatureTolerance/time.Second) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(rawTimestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Stripe may send several v1 signatures during secret rotation; any
	// match accepts the request.
	for _, signature := range signatures {
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return true
		}
	}
	return false
}

// parseSignatureHeader splits a Stripe-Signature header into its timestamp
// and v1 signature values.
func parseSignatureHeader(header string) (string, []string, error) {
	var rawTimestamp string
	var signatures []string

	for _, element := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(element), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			rawTimestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if rawTimestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("signature header missing t or v1 element")
	}
	return rawTimestamp, signatures, nil
}
