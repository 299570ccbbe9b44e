/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the payments service needs. Business logic depends on this
 * interface rather than on PostgreSQL directly, which keeps the onboarding
 * flows testable with in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/andriel300/tec-shop-sub000/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Seller profile methods
	GetSellerProfile(ctx context.Context, sellerID string) (*domain.SellerProfile, error)

	// Payment account methods
	GetPaymentAccount(ctx context.Context, sellerID string) (*domain.PaymentAccount, error)
	GetPaymentAccountByStripeID(ctx context.Context, stripeAccountID string) (*domain.PaymentAccount, error)
	CreatePaymentAccount(ctx context.Context, account *domain.PaymentAccount) error
	UpdateAccountStatus(ctx context.Context, sellerID string, params UpdateAccountStatusParams) error
	UpdateAccountStatusByStripeID(ctx context.Context, stripeAccountID string, params UpdateAccountStatusParams) error
	UpdateOnboardingURL(ctx context.Context, sellerID string, onboardingURL string) error

	// Reconciliation methods
	ListStalePendingAccounts(ctx context.Context, cutoff time.Time, limit int) ([]domain.PaymentAccount, error)
}

// UpdateAccountStatusParams carries the full set of status fields refreshed
// from Stripe. Every update rewrites the whole set and bumps last_updated.
type UpdateAccountStatusParams struct {
	Status           domain.AccountStatus
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
	Requirements     []string
	DisabledReason   string
}
