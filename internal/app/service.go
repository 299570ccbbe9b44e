/**
 * @description
 * This file contains the core business logic for seller payment-account
 * onboarding, implemented as the `OnboardingService`. It orchestrates the
 * database repository, the Stripe client, the redirect state token, and the
 * event publisher.
 *
 * Key features:
 * - Idempotent account creation: a seller who already has a Stripe account
 *   only ever gets a fresh onboarding link.
 * - Status refresh: live account data is remapped and persisted on every
 *   status read, webhook event, and reconciliation pass.
 * - Provider failures are logged with full detail but surfaced to callers
 *   as one generic retryable error.
 *
 * @notes
 * - This service layer keeps the API handlers thin and focused on HTTP
 *   concerns, while the business logic remains independent.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/andriel300/tec-shop-sub000/internal/domain"
	"github.com/andriel300/tec-shop-sub000/internal/store"
	"github.com/andriel300/tec-shop-sub000/pkg/statetoken"
	"github.com/andriel300/tec-shop-sub000/pkg/trust"
)

const (
	// stateTokenContext is the derivation context for the redirect-token
	// secret, keeping it unlinkable from any service's envelope secret.
	stateTokenContext = "onboarding-state-token"

	// paymentEventsRoutingKey is the routing key for status-change events.
	paymentEventsRoutingKey = "payment_account.updated"

	eventAccountUpdated    = "account.updated"
	eventCapabilityUpdated = "capability.updated"
)

var (
	// ErrProviderUnavailable is the only error surfaced when Stripe fails;
	// the underlying cause goes to the logs, never to the caller.
	ErrProviderUnavailable = errors.New("payment provider unavailable, please try again")
	// ErrInvalidStateToken is returned when a redirect carries a missing,
	// forged, or expired state token.
	ErrInvalidStateToken = errors.New("invalid or expired state token")
	// ErrNoPaymentAccount is returned when an operation needs an existing
	// account and the seller has none.
	ErrNoPaymentAccount = errors.New("seller has no payment account")
)

// StripeAPI is the slice of the Stripe client the onboarding service uses.
type StripeAPI interface {
	CreateAccount(ctx context.Context, profile domain.SellerProfile, idempotencyKey string) (*domain.StripeAccount, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*domain.StripeAccountLink, error)
	GetAccount(ctx context.Context, accountID string) (*domain.StripeAccount, error)
}

// EventPublisher broadcasts integration events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// OnboardingService owns the payment-account lifecycle for sellers.
type OnboardingService struct {
	repo          store.Repository
	stripe        StripeAPI
	publisher     EventPublisher
	stateSecret   []byte
	publicBaseURL string

	// reconcileDelay spaces the serial provider calls inside one
	// reconciliation pass.
	reconcileDelay time.Duration
}

// NewOnboardingService creates a new instance of OnboardingService.
// publicBaseURL is the externally reachable base of this service, used to
// build the browser return/refresh URLs. publisher may be nil when event
// publishing is disabled.
func NewOnboardingService(repo store.Repository, stripe StripeAPI, publisher EventPublisher, masterSecret []byte, publicBaseURL string) *OnboardingService {
	return &OnboardingService{
		repo:           repo,
		stripe:         stripe,
		publisher:      publisher,
		stateSecret:    trust.DeriveServiceSecret(masterSecret, stateTokenContext),
		publicBaseURL:  strings.TrimSuffix(publicBaseURL, "/"),
		reconcileDelay: reconcileCallInterval,
	}
}

// StartOnboarding creates the seller's Stripe account on first call and
// returns a fresh onboarding link. The operation is idempotent: a seller who
// already has an account skips creation and goes straight to link issuance.
func (s *OnboardingService) StartOnboarding(ctx context.Context, sellerID string) (*domain.OnboardingLink, error) {
	account, err := s.repo.GetPaymentAccount(ctx, sellerID)
	switch {
	case errors.Is(err, store.ErrPaymentAccountNotFound):
		account, err = s.createAccount(ctx, sellerID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load payment account: %w", err)
	}

	return s.issueLink(ctx, account)
}

// createAccount provisions a Stripe Express account seeded from the seller's
// profile. Nothing is persisted unless Stripe confirms the account, so a
// failed call leaves no half-created record behind.
func (s *OnboardingService) createAccount(ctx context.Context, sellerID string) (*domain.PaymentAccount, error) {
	profile, err := s.repo.GetSellerProfile(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	// The idempotency key is derived from the seller id, so a retried or
	// racing create resolves to the same Stripe account.
	stripeAccount, err := s.stripe.CreateAccount(ctx, *profile, "acct-create-"+sellerID)
	if err != nil {
		log.Printf("level=error component=onboarding op=create_account seller_id=%s err=%v", sellerID, err)
		return nil, ErrProviderUnavailable
	}

	account := &domain.PaymentAccount{
		SellerID:        sellerID,
		StripeAccountID: stripeAccount.ID,
		Status:          domain.StatusPending,
		Requirements:    []string{},
	}
	if err := s.repo.CreatePaymentAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("persist payment account: %w", err)
	}

	log.Printf("level=info component=onboarding op=create_account seller_id=%s stripe_account_id=%s msg=\"stripe account created\"", sellerID, stripeAccount.ID)
	return account, nil
}

// issueLink mints a fresh state token, asks Stripe for a new onboarding URL
// bound to this service's return/refresh endpoints, and records the URL.
func (s *OnboardingService) issueLink(ctx context.Context, account *domain.PaymentAccount) (*domain.OnboardingLink, error) {
	token, err := statetoken.Issue(account.SellerID, s.stateSecret)
	if err != nil {
		return nil, fmt.Errorf("issue state token: %w", err)
	}

	link, err := s.stripe.CreateAccountLink(
		ctx,
		account.StripeAccountID,
		s.redirectURL("refresh", account.SellerID, token),
		s.redirectURL("return", account.SellerID, token),
	)
	if err != nil {
		log.Printf("level=error component=onboarding op=issue_link seller_id=%s stripe_account_id=%s err=%v", account.SellerID, account.StripeAccountID, err)
		return nil, ErrProviderUnavailable
	}

	if err := s.repo.UpdateOnboardingURL(ctx, account.SellerID, link.URL); err != nil {
		return nil, fmt.Errorf("persist onboarding url: %w", err)
	}

	log.Printf("level=info component=onboarding op=issue_link seller_id=%s expires_at=%d msg=\"onboarding link issued\"", account.SellerID, link.ExpiresAt)
	return &domain.OnboardingLink{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}

func (s *OnboardingService) redirectURL(kind, sellerID, token string) string {
	q := url.Values{}
	q.Set("seller_id", sellerID)
	q.Set("state", token)
	return fmt.Sprintf("%s/onboarding/%s?%s", s.publicBaseURL, kind, q.Encode())
}

// GetStatus reports the seller's onboarding state. A seller with no account
// gets NOT_STARTED without any provider call; otherwise live Stripe data is
// fetched, remapped, persisted, and returned.
func (s *OnboardingService) GetStatus(ctx context.Context, sellerID string) (*domain.StatusSummary, error) {
	account, err := s.repo.GetPaymentAccount(ctx, sellerID)
	if errors.Is(err, store.ErrPaymentAccountNotFound) {
		summary := notStartedSummary()
		return &summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment account: %w", err)
	}

	return s.refreshStatus(ctx, account)
}

// HandleReturn confirms a seller's return from Stripe's hosted onboarding.
// The state token must validate; completion is then confirmed by re-reading
// provider state, never assumed from the redirect itself.
func (s *OnboardingService) HandleReturn(ctx context.Context, sellerID, token string) (*domain.StatusSummary, error) {
	if !statetoken.Validate(token, sellerID, s.stateSecret) {
		log.Printf("level=warn component=onboarding op=handle_return seller_id=%s msg=\"state token rejected\"", sellerID)
		return nil, ErrInvalidStateToken
	}
	return s.GetStatus(ctx, sellerID)
}

// HandleRefresh re-issues an expired onboarding link. The old state token
// must still validate; the new link carries a brand-new token and expiry, so
// a stale refresh URL cannot be replayed indefinitely.
func (s *OnboardingService) HandleRefresh(ctx context.Context, sellerID, token string) (*domain.OnboardingLink, error) {
	if !statetoken.Validate(token, sellerID, s.stateSecret) {
		log.Printf("level=warn component=onboarding op=handle_refresh seller_id=%s msg=\"state token rejected\"", sellerID)
		return nil, ErrInvalidStateToken
	}

	account, err := s.repo.GetPaymentAccount(ctx, sellerID)
	if errors.Is(err, store.ErrPaymentAccountNotFound) {
		return nil, ErrNoPaymentAccount
	}
	if err != nil {
		return nil, fmt.Errorf("load payment account: %w", err)
	}

	return s.issueLink(ctx, account)
}

// HandleWebhookEvent dispatches a verified Stripe event. Unhandled event
// kinds are acknowledged without action. Processing is idempotent: replaying
// an event converges on the same persisted state.
func (s *OnboardingService) HandleWebhookEvent(ctx context.Context, event *domain.StripeEvent) error {
	switch event.Type {
	case eventAccountUpdated:
		return s.handleAccountUpdated(ctx, event)
	case eventCapabilityUpdated:
		return s.handleCapabilityUpdated(ctx, event)
	default:
		log.Printf("level=info component=onboarding op=webhook event_id=%s event_type=%s msg=\"ignoring unhandled event type\"", event.ID, event.Type)
		return nil
	}
}

// handleAccountUpdated applies the event's embedded account snapshot.
// account.updated carries the full account object, so it is trusted without
// a second provider call; persistence is keyed by the Stripe account id, the
// only identifier the webhook carries.
func (s *OnboardingService) handleAccountUpdated(ctx context.Context, event *domain.StripeEvent) error {
	var snapshot domain.StripeAccount
	if err := json.Unmarshal(event.Data.Object, &snapshot); err != nil {
		return fmt.Errorf("decode account snapshot: %w", err)
	}
	if snapshot.ID == "" {
		snapshot.ID = event.Account
	}
	if snapshot.ID == "" {
		return errors.New("account.updated event carries no account id")
	}

	account, err := s.repo.GetPaymentAccountByStripeID(ctx, snapshot.ID)
	if errors.Is(err, store.ErrPaymentAccountNotFound) {
		// Likely an account created outside this service, e.g. directly in
		// the Stripe dashboard. Acknowledge and move on.
		log.Printf("level=warn component=onboarding op=webhook event_id=%s stripe_account_id=%s msg=\"no local account for event\"", event.ID, snapshot.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment account: %w", err)
	}

	refreshed, err := s.applyAccountSnapshot(ctx, account, &snapshot)
	if err != nil {
		return err
	}
	log.Printf("level=info component=onboarding op=webhook event_id=%s seller_id=%s status=%s msg=\"account snapshot applied\"", event.ID, refreshed.SellerID, refreshed.Status)
	return nil
}

// handleCapabilityUpdated refreshes the account behind a capability event.
// The capability payload is partial, so status is recomputed from a fresh
// account fetch instead of trusting it.
func (s *OnboardingService) handleCapabilityUpdated(ctx context.Context, event *domain.StripeEvent) error {
	var capability domain.StripeCapability
	if err := json.Unmarshal(event.Data.Object, &capability); err != nil {
		return fmt.Errorf("decode capability: %w", err)
	}
	accountID := capability.Account
	if accountID == "" {
		accountID = event.Account
	}
	if accountID == "" {
		return errors.New("capability.updated event carries no account id")
	}

	account, err := s.repo.GetPaymentAccountByStripeID(ctx, accountID)
	if errors.Is(err, store.ErrPaymentAccountNotFound) {
		log.Printf("level=warn component=onboarding op=webhook event_id=%s stripe_account_id=%s msg=\"no local account for event\"", event.ID, accountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment account: %w", err)
	}

	if _, err := s.refreshStatus(ctx, account); err != nil {
		return err
	}
	log.Printf("level=info component=onboarding op=webhook event_id=%s seller_id=%s msg=\"capability change refreshed\"", event.ID, account.SellerID)
	return nil
}

// refreshStatus fetches the live Stripe account, then remaps and persists
// the status fields.
func (s *OnboardingService) refreshStatus(ctx context.Context, account *domain.PaymentAccount) (*domain.StatusSummary, error) {
	stripeAccount, err := s.stripe.GetAccount(ctx, account.StripeAccountID)
	if err != nil {
		log.Printf("level=error component=onboarding op=refresh_status seller_id=%s stripe_account_id=%s err=%v", account.SellerID, account.StripeAccountID, err)
		return nil, ErrProviderUnavailable
	}

	refreshed, err := s.applyAccountSnapshot(ctx, account, stripeAccount)
	if err != nil {
		return nil, err
	}

	summary := buildStatusSummary(refreshed)
	return &summary, nil
}

// applyAccountSnapshot maps a Stripe snapshot onto the local record,
// persists the refreshed fields keyed by the Stripe account id, and emits a
// status-change event when the mapped status moved.
func (s *OnboardingService) applyAccountSnapshot(ctx context.Context, previous *domain.PaymentAccount, snapshot *domain.StripeAccount) (*domain.PaymentAccount, error) {
	stripeAccountID := snapshot.ID
	if stripeAccountID == "" {
		stripeAccountID = previous.StripeAccountID
	}

	params := store.UpdateAccountStatusParams{
		Status:           mapAccountStatus(snapshot),
		DetailsSubmitted: snapshot.DetailsSubmitted,
		ChargesEnabled:   snapshot.ChargesEnabled,
		PayoutsEnabled:   snapshot.PayoutsEnabled,
		Requirements:     snapshot.Requirements.CurrentlyDue,
		DisabledReason:   snapshot.Requirements.DisabledReason,
	}
	if params.Requirements == nil {
		params.Requirements = []string{}
	}

	if err := s.repo.UpdateAccountStatusByStripeID(ctx, stripeAccountID, params); err != nil {
		return nil, fmt.Errorf("persist account status: %w", err)
	}

	refreshed := *previous
	refreshed.StripeAccountID = stripeAccountID
	refreshed.Status = params.Status
	refreshed.DetailsSubmitted = params.DetailsSubmitted
	refreshed.ChargesEnabled = params.ChargesEnabled
	refreshed.PayoutsEnabled = params.PayoutsEnabled
	refreshed.Requirements = params.Requirements
	refreshed.DisabledReason = params.DisabledReason
	refreshed.LastUpdated = time.Now().UTC()

	if previous.Status != refreshed.Status {
		s.publishStatusChange(ctx, previous.Status, &refreshed)
	}

	return &refreshed, nil
}

func (s *OnboardingService) publishStatusChange(ctx context.Context, previous domain.AccountStatus, account *domain.PaymentAccount) {
	if s.publisher == nil {
		return
	}

	event := domain.PaymentAccountUpdatedEvent{
		SellerID:        account.SellerID,
		StripeAccountID: account.StripeAccountID,
		PreviousStatus:  string(previous),
		Status:          string(account.Status),
		UpdatedAt:       account.LastUpdated,
	}
	if err := s.publisher.Publish(ctx, paymentEventsRoutingKey, event); err != nil {
		// The status itself is already persisted; delivery is best-effort.
		log.Printf("level=warn component=onboarding op=publish_event seller_id=%s err=%v", account.SellerID, err)
	}
}
