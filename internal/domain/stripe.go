/**
 * @description
 * This file defines the Go structs that map to the Stripe API objects the
 * payments service touches: Express accounts, account links, capabilities,
 * and webhook events.
 *
 * @notes
 * - These structs are used by the Stripe API client to deserialize
 *   responses and by the webhook handler to decode event payloads.
 * - Only the fields this service reads are modeled; Stripe objects carry
 *   many more.
 */
package domain

import "encoding/json"

// --- Accounts ---

// StripeAccount is a Stripe Connect account as returned by the accounts API
// and embedded in account.updated events.
type StripeAccount struct {
	ID               string             `json:"id"`
	Email            string             `json:"email"`
	Country          string             `json:"country"`
	DetailsSubmitted bool               `json:"details_submitted"`
	ChargesEnabled   bool               `json:"charges_enabled"`
	PayoutsEnabled   bool               `json:"payouts_enabled"`
	Requirements     StripeRequirements `json:"requirements"`
}

// StripeRequirements describes what Stripe still needs from the account
// holder and why capabilities may be disabled.
type StripeRequirements struct {
	CurrentlyDue   []string `json:"currently_due"`
	EventuallyDue  []string `json:"eventually_due"`
	PastDue        []string `json:"past_due"`
	DisabledReason string   `json:"disabled_reason"`
}

// --- Account links ---

// StripeAccountLink is the short-lived hosted-onboarding URL.
type StripeAccountLink struct {
	Object    string `json:"object"`
	Created   int64  `json:"created"`
	ExpiresAt int64  `json:"expires_at"`
	URL       string `json:"url"`
}

// --- Capabilities ---

// StripeCapability is the payload of a capability.updated event. The event
// is only a trigger: status is refreshed from the account API instead of
// trusting this partial snapshot.
type StripeCapability struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Status  string `json:"status"`
}

// --- Webhook events ---

// StripeEvent is the envelope Stripe posts to the webhook endpoint. For
// Connect events the top-level Account field names the connected account
// the event belongs to.
type StripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Account string          `json:"account"`
	Data    StripeEventData `json:"data"`
}

// StripeEventData wraps the event's object payload. It is kept raw so each
// event kind can decode it into the right struct.
type StripeEventData struct {
	Object json.RawMessage `json:"object"`
}
