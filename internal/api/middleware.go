/**
 * @description
 * Authentication middleware for the payments service's internal endpoints.
 * Callers are other tec-shop services: each request body is a signed
 * envelope, and the `X-Service-Id` header names the calling service. The
 * middleware derives that service's secret from the shared master secret,
 * verifies the envelope, and hands the authenticated caller id plus the
 * envelope payload to the handler via the request context.
 *
 * @notes
 * - Rejections always answer a bare 401. The precise reason (unknown
 *   service, bad signature, stale timestamp) goes to the logs only, so the
 *   endpoint cannot be used as a verification oracle.
 */
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/andriel300/tec-shop-sub000/pkg/trust"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	callerServiceIDKey contextKey = "callerServiceID"
	envelopePayloadKey contextKey = "envelopePayload"
)

// EnvelopeAuth verifies the signed envelope carried in the request body.
// allowedServiceIDs is the closed set of services permitted to call the
// internal endpoints; anything else is rejected before signature checks.
func EnvelopeAuth(masterSecret []byte, allowedServiceIDs []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedServiceIDs))
	for _, id := range allowedServiceIDs {
		allowed[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerID := r.Header.Get("X-Service-Id")
			if callerID == "" {
				log.Printf("level=warn component=api middleware=envelope_auth outcome=reject reason=missing_service_header path=%s", r.URL.Path)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[callerID]; !ok {
				log.Printf("level=warn component=api middleware=envelope_auth outcome=reject reason=unknown_service service_id=%s path=%s", callerID, r.URL.Path)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var envelope trust.SignedEnvelope
			if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
				log.Printf("level=warn component=api middleware=envelope_auth outcome=reject reason=malformed_envelope service_id=%s err=%v", callerID, err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			secret := trust.DeriveServiceSecret(masterSecret, callerID)
			if err := trust.Verify(envelope, callerID, secret); err != nil {
				log.Printf("level=warn component=api middleware=envelope_auth outcome=reject service_id=%s err=%v", callerID, err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerServiceIDKey, callerID)
			ctx = context.WithValue(ctx, envelopePayloadKey, envelope.Payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerServiceID retrieves the authenticated calling service's id.
func CallerServiceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerServiceIDKey).(string)
	return id, ok
}

// EnvelopePayload retrieves the verified envelope payload bytes. Handlers
// decode these instead of the request body, which was consumed during
// verification.
func EnvelopePayload(ctx context.Context) (json.RawMessage, bool) {
	payload, ok := ctx.Value(envelopePayloadKey).(json.RawMessage)
	return payload, ok
}
