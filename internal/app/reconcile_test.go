package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andriel300/tec-shop-sub000/internal/domain"
)

func stalePending(n int) []domain.PaymentAccount {
	accounts := make([]domain.PaymentAccount, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, domain.PaymentAccount{
			SellerID:        "slr_" + string(rune('a'+i)),
			StripeAccountID: "acct_" + string(rune('a'+i)),
			Status:          domain.StatusPending,
			Requirements:    []string{},
		})
	}
	return accounts
}

func TestReconcilePending_RefreshesStaleAccounts(t *testing.T) {
	repo := &repoStub{staleAccounts: stalePending(3)}
	stripe := &stripeStub{}
	svc := newTestService(repo, stripe, nil)

	refreshed, err := svc.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if refreshed != 3 {
		t.Fatalf("expected 3 refreshed, got %d", refreshed)
	}
	if stripe.getCalls != 3 {
		t.Fatalf("expected one provider call per account, got %d", stripe.getCalls)
	}
	if len(repo.statusUpdates) != 3 {
		t.Fatalf("expected each refresh persisted, got %d updates", len(repo.statusUpdates))
	}
}

func TestReconcilePending_UsesStaleCutoffAndBatchCap(t *testing.T) {
	repo := &repoStub{staleAccounts: stalePending(12)}
	stripe := &stripeStub{}
	svc := newTestService(repo, stripe, nil)

	before := time.Now().UTC()
	refreshed, err := svc.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}

	if repo.listedLimit != 10 {
		t.Fatalf("expected batch capped at 10, got limit %d", repo.listedLimit)
	}
	if refreshed != 10 {
		t.Fatalf("expected 10 refreshed, got %d", refreshed)
	}

	age := before.Sub(repo.listedCutoff)
	if age < 59*time.Second || age > 61*time.Second {
		t.Fatalf("expected a cutoff about 60s in the past, got %s", age)
	}
}

func TestReconcilePending_ContinuesAfterFailure(t *testing.T) {
	repo := &repoStub{staleAccounts: stalePending(3)}
	stripe := &stripeStub{}
	stripe.getAccount = func(accountID string) (*domain.StripeAccount, error) {
		if accountID == "acct_b" {
			return nil, errors.New("stripe timeout")
		}
		return &domain.StripeAccount{ID: accountID}, nil
	}
	svc := newTestService(repo, stripe, nil)

	refreshed, err := svc.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("expected per-account failures to be swallowed, got %v", err)
	}
	if refreshed != 2 {
		t.Fatalf("expected 2 refreshed around the failure, got %d", refreshed)
	}
	if stripe.getCalls != 3 {
		t.Fatalf("expected the batch to continue past the failure, got %d calls", stripe.getCalls)
	}
}

func TestReconcilePending_NothingStale(t *testing.T) {
	repo := &repoStub{}
	stripe := &stripeStub{}
	svc := newTestService(repo, stripe, nil)

	refreshed, err := svc.ReconcilePending(context.Background())
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if refreshed != 0 {
		t.Fatalf("expected nothing refreshed, got %d", refreshed)
	}
	if stripe.getCalls != 0 {
		t.Fatal("expected no provider calls for an empty batch")
	}
}

func TestReconcilePending_StopsWhenContextCancelled(t *testing.T) {
	repo := &repoStub{staleAccounts: stalePending(3)}
	stripe := &stripeStub{}
	svc := newTestService(repo, stripe, nil)
	svc.reconcileDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refreshed, err := svc.ReconcilePending(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if refreshed != 1 {
		t.Fatalf("expected the pass to stop after the in-flight account, got %d", refreshed)
	}
}
