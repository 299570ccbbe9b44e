package app

import (
	"strings"

	"github.com/andriel300/tec-shop-sub000/internal/domain"
)

// rejectionReasons are the disabled_reason values Stripe uses for a terminal
// rejection. Any other non-empty reason is a restriction the seller may
// still recover from.
var rejectionReasons = map[string]bool{
	"rejected.fraud":            true,
	"rejected.listed":           true,
	"rejected.terms_of_service": true,
}

// mapAccountStatus derives the local lifecycle status from a Stripe account
// snapshot. Rules are evaluated top to bottom and the first match wins:
//
//  1. details submitted, charges and payouts both enabled -> COMPLETE
//  2. rejection disabled_reason -> REJECTED
//  3. any other disabled_reason -> RESTRICTED
//  4. details submitted but capabilities not all enabled -> PENDING
//  5. outstanding currently_due requirements -> INCOMPLETE
//  6. otherwise -> PENDING
func mapAccountStatus(account *domain.StripeAccount) domain.AccountStatus {
	if account.DetailsSubmitted && account.ChargesEnabled && account.PayoutsEnabled {
		return domain.StatusComplete
	}

	reason := strings.TrimSpace(account.Requirements.DisabledReason)
	if reason != "" {
		if rejectionReasons[reason] {
			return domain.StatusRejected
		}
		return domain.StatusRestricted
	}

	if account.DetailsSubmitted {
		return domain.StatusPending
	}
	if len(account.Requirements.CurrentlyDue) > 0 {
		return domain.StatusIncomplete
	}
	return domain.StatusPending
}

// buildStatusSummary converts a local account record into the view returned
// to internal callers.
func buildStatusSummary(account *domain.PaymentAccount) domain.StatusSummary {
	requirements := account.Requirements
	if requirements == nil {
		requirements = []string{}
	}
	return domain.StatusSummary{
		Status:            account.Status,
		CanAcceptPayments: account.ChargesEnabled && account.PayoutsEnabled,
		RequiresAction:    len(requirements) > 0,
		Requirements:      requirements,
		AccountID:         account.StripeAccountID,
		DetailsSubmitted:  boolPtr(account.DetailsSubmitted),
		PayoutsEnabled:    boolPtr(account.PayoutsEnabled),
		ChargesEnabled:    boolPtr(account.ChargesEnabled),
	}
}

// notStartedSummary is the view for a seller who never began onboarding.
func notStartedSummary() domain.StatusSummary {
	return domain.StatusSummary{
		Status:       domain.StatusNotStarted,
		Requirements: []string{},
	}
}

func boolPtr(b bool) *bool { return &b }
