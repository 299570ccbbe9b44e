/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for the `sellers` and
 * `seller_payment_accounts` tables.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andriel300/tec-shop-sub000/internal/domain"
)

var (
	ErrSellerNotFound         = errors.New("seller not found")
	ErrPaymentAccountNotFound = errors.New("payment account not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetSellerProfile retrieves the profile fields used to seed a Stripe account.
func (r *PostgresRepository) GetSellerProfile(ctx context.Context, sellerID string) (*domain.SellerProfile, error) {
	var profile domain.SellerProfile
	query := `SELECT id, email, country, business_name, COALESCE(website, '') FROM sellers WHERE id = $1`
	err := r.db.QueryRow(ctx, query, sellerID).Scan(
		&profile.SellerID,
		&profile.Email,
		&profile.Country,
		&profile.BusinessName,
		&profile.Website,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// GetPaymentAccount retrieves a seller's payment account by seller id.
func (r *PostgresRepository) GetPaymentAccount(ctx context.Context, sellerID string) (*domain.PaymentAccount, error) {
	return r.getAccount(ctx, `WHERE seller_id = $1`, sellerID)
}

// GetPaymentAccountByStripeID retrieves a payment account by its Stripe
// account id. Webhook events carry only the Stripe id, so this is the join
// used on the webhook path.
func (r *PostgresRepository) GetPaymentAccountByStripeID(ctx context.Context, stripeAccountID string) (*domain.PaymentAccount, error) {
	return r.getAccount(ctx, `WHERE stripe_account_id = $1`, stripeAccountID)
}

func (r *PostgresRepository) getAccount(ctx context.Context, where, key string) (*domain.PaymentAccount, error) {
	var account domain.PaymentAccount
	query := `
		SELECT seller_id, stripe_account_id, status, details_submitted, charges_enabled,
		       payouts_enabled, requirements, disabled_reason, onboarding_url, created_at, last_updated
		FROM seller_payment_accounts ` + where
	err := r.db.QueryRow(ctx, query, key).Scan(
		&account.SellerID,
		&account.StripeAccountID,
		&account.Status,
		&account.DetailsSubmitted,
		&account.ChargesEnabled,
		&account.PayoutsEnabled,
		&account.Requirements,
		&account.DisabledReason,
		&account.OnboardingURL,
		&account.CreatedAt,
		&account.LastUpdated,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreatePaymentAccount inserts the account row recorded after Stripe has
// confirmed account creation. A row is never written before that, so a
// failed provider call leaves no half-created state behind.
func (r *PostgresRepository) CreatePaymentAccount(ctx context.Context, account *domain.PaymentAccount) error {
	query := `
		INSERT INTO seller_payment_accounts
			(seller_id, stripe_account_id, status, details_submitted, charges_enabled,
			 payouts_enabled, requirements, disabled_reason, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query,
		account.SellerID,
		account.StripeAccountID,
		account.Status,
		account.DetailsSubmitted,
		account.ChargesEnabled,
		account.PayoutsEnabled,
		account.Requirements,
		account.DisabledReason,
	)
	return err
}

// UpdateAccountStatus rewrites the status fields for a seller's account.
func (r *PostgresRepository) UpdateAccountStatus(ctx context.Context, sellerID string, params UpdateAccountStatusParams) error {
	return r.updateStatus(ctx, `WHERE seller_id = $7`, sellerID, params)
}

// UpdateAccountStatusByStripeID rewrites the status fields keyed by the
// Stripe account id, for webhook-driven updates.
func (r *PostgresRepository) UpdateAccountStatusByStripeID(ctx context.Context, stripeAccountID string, params UpdateAccountStatusParams) error {
	return r.updateStatus(ctx, `WHERE stripe_account_id = $7`, stripeAccountID, params)
}

func (r *PostgresRepository) updateStatus(ctx context.Context, where, key string, params UpdateAccountStatusParams) error {
	query := `
		UPDATE seller_payment_accounts
		SET status = $1,
		    details_submitted = $2,
		    charges_enabled = $3,
		    payouts_enabled = $4,
		    requirements = $5,
		    disabled_reason = $6,
		    last_updated = NOW()
	` + where
	tag, err := r.db.Exec(ctx, query,
		params.Status,
		params.DetailsSubmitted,
		params.ChargesEnabled,
		params.PayoutsEnabled,
		params.Requirements,
		params.DisabledReason,
		key,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentAccountNotFound
	}
	return nil
}

// UpdateOnboardingURL stores the most recently issued onboarding link and
// bumps last_updated.
func (r *PostgresRepository) UpdateOnboardingURL(ctx context.Context, sellerID string, onboardingURL string) error {
	query := `
		UPDATE seller_payment_accounts
		SET onboarding_url = $1, last_updated = NOW()
		WHERE seller_id = $2
	`
	tag, err := r.db.Exec(ctx, query, onboardingURL, sellerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentAccountNotFound
	}
	return nil
}

// ListStalePendingAccounts returns accounts still in flight (PENDING or
// INCOMPLETE) whose last refresh is older than cutoff, oldest first, capped
// at limit.
func (r *PostgresRepository) ListStalePendingAccounts(ctx context.Context, cutoff time.Time, limit int) ([]domain.PaymentAccount, error) {
	query := `
		SELECT seller_id, stripe_account_id, status, details_submitted, charges_enabled,
		       payouts_enabled, requirements, disabled_reason, onboarding_url, created_at, last_updated
		FROM seller_payment_accounts
		WHERE status = ANY($1) AND last_updated < $2
		ORDER BY last_updated ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query,
		[]string{string(domain.StatusPending), string(domain.StatusIncomplete)},
		cutoff,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.PaymentAccount
	for rows.Next() {
		var account domain.PaymentAccount
		if err := rows.Scan(
			&account.SellerID,
			&account.StripeAccountID,
			&account.Status,
			&account.DetailsSubmitted,
			&account.ChargesEnabled,
			&account.PayoutsEnabled,
			&account.Requirements,
			&account.DisabledReason,
			&account.OnboardingURL,
			&account.CreatedAt,
			&account.LastUpdated,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}
