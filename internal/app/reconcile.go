package app

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	// reconcileBatchLimit caps how many accounts one pass may refresh.
	reconcileBatchLimit = 10
	// reconcileStaleAfter is how old an account's last refresh must be
	// before the reconciler touches it.
	reconcileStaleAfter = 60 * time.Second
	// reconcileCallInterval is the default spacing between the serial
	// provider calls inside a pass.
	reconcileCallInterval = 500 * time.Millisecond
)

// ReconcilePending refreshes accounts stuck in PENDING or INCOMPLETE whose
// last update is older than reconcileStaleAfter. It substitutes for webhook
// delivery in environments Stripe cannot reach, e.g. local development. The
// batch is capped and walked serially with a fixed delay between provider
// calls; a failure on one account is logged and the batch continues.
//
// It returns the number of accounts successfully refreshed.
func (s *OnboardingService) ReconcilePending(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-reconcileStaleAfter)
	accounts, err := s.repo.ListStalePendingAccounts(ctx, cutoff, reconcileBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list stale accounts: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	refreshed := 0
	for i := range accounts {
		account := &accounts[i]
		if _, err := s.refreshStatus(ctx, account); err != nil {
			log.Printf("level=warn component=onboarding op=reconcile seller_id=%s stripe_account_id=%s err=%v", account.SellerID, account.StripeAccountID, err)
		} else {
			refreshed++
		}

		if i < len(accounts)-1 && s.reconcileDelay > 0 {
			select {
			case <-ctx.Done():
				return refreshed, ctx.Err()
			case <-time.After(s.reconcileDelay):
			}
		}
	}

	log.Printf("level=info component=onboarding op=reconcile batch=%d refreshed=%d msg=\"reconcile pass finished\"", len(accounts), refreshed)
	return refreshed, nil
}
