package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andriel300/tec-shop-sub000/internal/app"
	"github.com/andriel300/tec-shop-sub000/internal/domain"
	"github.com/andriel300/tec-shop-sub000/internal/store"
	"github.com/andriel300/tec-shop-sub000/pkg/statetoken"
	"github.com/andriel300/tec-shop-sub000/pkg/trust"
)

const (
	testMasterSecret  = "api-test-master-secret"
	testWebhookSecret = "whsec_api_test"
	testCompleteURL   = "https://shop.tec-shop.test/seller/onboarding/complete"
	testErrorURL      = "https://shop.tec-shop.test/seller/onboarding/error"
)

// repoStub is an in-memory store.Repository; unstubbed methods panic via the
// embedded interface.
type repoStub struct {
	store.Repository

	profile  *domain.SellerProfile
	accounts map[string]*domain.PaymentAccount

	statusUpdates []store.UpdateAccountStatusParams
	savedURLs     []string
}

func (r *repoStub) GetSellerProfile(ctx context.Context, sellerID string) (*domain.SellerProfile, error) {
	if r.profile == nil || r.profile.SellerID != sellerID {
		return nil, store.ErrSellerNotFound
	}
	return r.profile, nil
}

func (r *repoStub) GetPaymentAccount(ctx context.Context, sellerID string) (*domain.PaymentAccount, error) {
	account, ok := r.accounts[sellerID]
	if !ok {
		return nil, store.ErrPaymentAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *repoStub) GetPaymentAccountByStripeID(ctx context.Context, stripeAccountID string) (*domain.PaymentAccount, error) {
	for _, account := range r.accounts {
		if account.StripeAccountID == stripeAccountID {
			clone := *account
			return &clone, nil
		}
	}
	return nil, store.ErrPaymentAccountNotFound
}

func (r *repoStub) CreatePaymentAccount(ctx context.Context, account *domain.PaymentAccount) error {
	if r.accounts == nil {
		r.accounts = make(map[string]*domain.PaymentAccount)
	}
	r.accounts[account.SellerID] = account
	return nil
}

func (r *repoStub) UpdateAccountStatusByStripeID(ctx context.Context, stripeAccountID string, params store.UpdateAccountStatusParams) error {
	r.statusUpdates = append(r.statusUpdates, params)
	return nil
}

func (r *repoStub) UpdateOnboardingURL(ctx context.Context, sellerID string, onboardingURL string) error {
	r.savedURLs = append(r.savedURLs, onboardingURL)
	return nil
}

// stripeStub is a canned app.StripeAPI.
type stripeStub struct {
	account *domain.StripeAccount
	linkURL string

	createCalls int
	getCalls    int

	createErr error
	getErr    error
}

func (s *stripeStub) CreateAccount(ctx context.Context, profile domain.SellerProfile, idempotencyKey string) (*domain.StripeAccount, error) {
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.account != nil {
		return s.account, nil
	}
	return &domain.StripeAccount{ID: "acct_stub"}, nil
}

func (s *stripeStub) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*domain.StripeAccountLink, error) {
	url := s.linkURL
	if url == "" {
		url = "https://connect.stripe.com/setup/s/stub"
	}
	return &domain.StripeAccountLink{URL: url, ExpiresAt: time.Now().Add(5 * time.Minute).Unix()}, nil
}

func (s *stripeStub) GetAccount(ctx context.Context, accountID string) (*domain.StripeAccount, error) {
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.account != nil {
		return s.account, nil
	}
	return &domain.StripeAccount{ID: accountID}, nil
}

// newTestRouter wires the full router over stubbed storage and Stripe.
func newTestRouter(repo *repoStub, stripe *stripeStub) http.Handler {
	svc := app.NewOnboardingService(repo, stripe, nil, []byte(testMasterSecret), "https://payments.tec-shop.internal")
	handlers := NewPaymentAccountHandlers(svc, testCompleteURL, testErrorURL)
	webhook := NewStripeWebhookHandler(svc, testWebhookSecret, nil)
	return PaymentRoutes(handlers, webhook, []byte(testMasterSecret), []string{"order-service", "seller-service"})
}

// signedRequest builds an internal-endpoint request carrying a valid signed
// envelope from serviceID.
func signedRequest(t *testing.T, target, serviceID string, payload any) *http.Request {
	t.Helper()
	secret := trust.DeriveServiceSecret([]byte(testMasterSecret), serviceID)
	envelope, err := trust.Sign(payload, serviceID, secret)
	if err != nil {
		t.Fatalf("sign envelope: %v", err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Id", serviceID)
	return req
}

func sellerStateToken(t *testing.T, sellerID string) string {
	t.Helper()
	secret := trust.DeriveServiceSecret([]byte(testMasterSecret), "onboarding-state-token")
	token, err := statetoken.Issue(sellerID, secret)
	if err != nil {
		t.Fatalf("issue state token: %v", err)
	}
	return token
}

func TestOnboardEndpoint_ReturnsLink(t *testing.T) {
	repo := &repoStub{
		profile: &domain.SellerProfile{SellerID: "slr_1", Email: "seller@example.com", Country: "US", BusinessName: "Acme Goods"},
	}
	router := newTestRouter(repo, &stripeStub{account: &domain.StripeAccount{ID: "acct_1"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, "/internal/payment-accounts/onboard", "order-service", map[string]string{"seller_id": "slr_1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var link domain.OnboardingLink
	if err := json.Unmarshal(rec.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if link.URL == "" || link.ExpiresAt == 0 {
		t.Fatalf("expected a populated onboarding link, got %+v", link)
	}
}

func TestOnboardEndpoint_UnknownSeller(t *testing.T) {
	router := newTestRouter(&repoStub{}, &stripeStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, "/internal/payment-accounts/onboard", "order-service", map[string]string{"seller_id": "slr_ghost"}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestOnboardEndpoint_ProviderDown(t *testing.T) {
	repo := &repoStub{
		profile: &domain.SellerProfile{SellerID: "slr_1", Email: "seller@example.com", Country: "US"},
	}
	router := newTestRouter(repo, &stripeStub{createErr: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, "/internal/payment-accounts/onboard", "order-service", map[string]string{"seller_id": "slr_1"}))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "try again") {
		t.Fatalf("expected the generic retry message, got %s", rec.Body.String())
	}
}

func TestOnboardEndpoint_MissingSellerID(t *testing.T) {
	router := newTestRouter(&repoStub{}, &stripeStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, "/internal/payment-accounts/onboard", "order-service", map[string]string{"seller_id": "  "}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusEndpoint_NotStarted(t *testing.T) {
	stripe := &stripeStub{}
	router := newTestRouter(&repoStub{}, stripe)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, "/internal/payment-accounts/status", "seller-service", map[string]string{"seller_id": "slr_new"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "NOT_STARTED" {
		t.Fatalf("expected NOT_STARTED, got %v", body["status"])
	}
	if _, present := body["accountId"]; present {
		t.Fatal("expected account fields omitted for NOT_STARTED")
	}
	if stripe.getCalls != 0 {
		t.Fatal("expected no provider call for NOT_STARTED")
	}
}

func TestStatusEndpoint_ReportsLiveState(t *testing.T) {
	repo := &repoStub{accounts: map[string]*domain.PaymentAccount{"slr_1": {
		SellerID:        "slr_1",
		StripeAccountID: "acct_1",
		Status:          domain.StatusPending,
		Requirements:    []string{},
	}}}
	stripe := &stripeStub{account: &domain.StripeAccount{
		ID:               "acct_1",
		DetailsSubmitted: true,
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
	}}
	router := newTestRouter(repo, stripe)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, "/internal/payment-accounts/status", "seller-service", map[string]string{"seller_id": "slr_1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary domain.StatusSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.Status != domain.StatusComplete || !summary.CanAcceptPayments {
		t.Fatalf("expected a COMPLETE summary, got %+v", summary)
	}
}

func TestInternalEndpoints_RequireEnvelope(t *testing.T) {
	router := newTestRouter(&repoStub{}, &stripeStub{})

	req := httptest.NewRequest(http.MethodPost, "/internal/payment-accounts/status", strings.NewReader(`{"seller_id":"slr_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an envelope, got %d", rec.Code)
	}
}

func TestReturnEndpoint_RedirectsToComplete(t *testing.T) {
	repo := &repoStub{accounts: map[string]*domain.PaymentAccount{"slr_1": {
		SellerID:        "slr_1",
		StripeAccountID: "acct_1",
		Status:          domain.StatusPending,
		Requirements:    []string{},
	}}}
	stripe := &stripeStub{account: &domain.StripeAccount{
		ID:               "acct_1",
		DetailsSubmitted: true,
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
	}}
	router := newTestRouter(repo, stripe)

	target := "/onboarding/return?seller_id=slr_1&state=" + sellerStateToken(t, "slr_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != testCompleteURL+"?status=COMPLETE" {
		t.Fatalf("unexpected redirect target %s", got)
	}
}

func TestReturnEndpoint_BadStateRedirectsToError(t *testing.T) {
	router := newTestRouter(&repoStub{}, &stripeStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/onboarding/return?seller_id=slr_1&state=forged", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != testErrorURL+"?reason=invalid_state" {
		t.Fatalf("unexpected redirect target %s", got)
	}
}

func TestRefreshEndpoint_RedirectsToNewStripeURL(t *testing.T) {
	repo := &repoStub{accounts: map[string]*domain.PaymentAccount{"slr_1": {
		SellerID:        "slr_1",
		StripeAccountID: "acct_1",
		Status:          domain.StatusPending,
		Requirements:    []string{},
	}}}
	stripe := &stripeStub{linkURL: "https://connect.stripe.com/setup/s/fresh"}
	router := newTestRouter(repo, stripe)

	target := "/onboarding/refresh?seller_id=slr_1&state=" + sellerStateToken(t, "slr_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://connect.stripe.com/setup/s/fresh" {
		t.Fatalf("expected redirect to the fresh stripe link, got %s", got)
	}
	if len(repo.savedURLs) != 1 {
		t.Fatalf("expected the new url persisted, got %d", len(repo.savedURLs))
	}
}

func TestRefreshEndpoint_NoAccountRedirectsToError(t *testing.T) {
	router := newTestRouter(&repoStub{}, &stripeStub{})

	target := "/onboarding/refresh?seller_id=slr_1&state=" + sellerStateToken(t, "slr_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != testErrorURL+"?reason=no_account" {
		t.Fatalf("unexpected redirect target %s", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&repoStub{}, &stripeStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
