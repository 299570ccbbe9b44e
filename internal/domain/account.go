/**
 * @description
 * This file defines the core domain model for a seller's payment account
 * within the tec-shop system. It represents the account as stored in our
 * own database, decoupled from Stripe's representation.
 *
 * @notes
 * - `SellerID` links the account back to a seller in the `sellers` table;
 *   the relationship is one-to-one for the seller's whole life.
 * - `StripeAccountID` is the join key used by webhook events, which carry
 *   no tec-shop identifiers.
 */
package domain

import "time"

// AccountStatus is the onboarding lifecycle state of a payment account.
type AccountStatus string

const (
	// StatusNotStarted means the seller has no Stripe account yet.
	StatusNotStarted AccountStatus = "NOT_STARTED"
	// StatusPending means a link was issued and onboarding is in flight, or
	// details were submitted and Stripe has not enabled all capabilities yet.
	StatusPending AccountStatus = "PENDING"
	// StatusIncomplete means Stripe reports outstanding requirements the
	// seller still has to provide.
	StatusIncomplete AccountStatus = "INCOMPLETE"
	// StatusComplete is terminal success: details submitted, charges and
	// payouts both enabled.
	StatusComplete AccountStatus = "COMPLETE"
	// StatusRestricted means Stripe disabled capabilities for a reason that
	// is not a rejection, e.g. pending verification or a platform pause.
	StatusRestricted AccountStatus = "RESTRICTED"
	// StatusRejected is terminal failure: Stripe rejected the account.
	StatusRejected AccountStatus = "REJECTED"
)

// PaymentAccount is the local record of a seller's Stripe Connect account.
// A seller with no row is in state NOT_STARTED; the row is only created
// once Stripe has confirmed the account, so it always carries the external
// account id.
type PaymentAccount struct {
	SellerID         string        `json:"seller_id"`
	StripeAccountID  string        `json:"stripe_account_id"`
	Status           AccountStatus `json:"status"`
	DetailsSubmitted bool          `json:"details_submitted"`
	ChargesEnabled   bool          `json:"charges_enabled"`
	PayoutsEnabled   bool          `json:"payouts_enabled"`
	Requirements     []string      `json:"requirements"`
	DisabledReason   string        `json:"disabled_reason,omitempty"`
	OnboardingURL    *string       `json:"onboarding_url,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	LastUpdated      time.Time     `json:"last_updated"`
}

// SellerProfile carries the seller fields used to seed a Stripe account.
type SellerProfile struct {
	SellerID     string `json:"seller_id"`
	Email        string `json:"email"`
	Country      string `json:"country"`
	BusinessName string `json:"business_name"`
	Website      string `json:"website,omitempty"`
}

// StatusSummary is the status view returned to internal callers. The
// account fields are omitted for sellers who never started onboarding.
type StatusSummary struct {
	Status            AccountStatus `json:"status"`
	CanAcceptPayments bool          `json:"canAcceptPayments"`
	RequiresAction    bool          `json:"requiresAction"`
	Requirements      []string      `json:"requirements"`
	AccountID         string        `json:"accountId,omitempty"`
	DetailsSubmitted  *bool         `json:"detailsSubmitted,omitempty"`
	PayoutsEnabled    *bool         `json:"payoutsEnabled,omitempty"`
	ChargesEnabled    *bool         `json:"chargesEnabled,omitempty"`
}

// OnboardingLink is the time-limited Stripe URL a seller is sent to.
type OnboardingLink struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}
