/**
 * @description
 * This file defines the domain models for events published by the payments
 * service. These structs are the contract for messages emitted to the
 * message broker (RabbitMQ) whenever onboarding state changes.
 */
package domain

import "time"

// PaymentAccountUpdatedEvent is published when a seller's payment account
// status changes, whatever caused the change (status fetch, webhook, or
// reconciliation). Consumers include the notification and admin services.
type PaymentAccountUpdatedEvent struct {
	SellerID        string    `json:"seller_id"`
	StripeAccountID string    `json:"stripe_account_id"`
	PreviousStatus  string    `json:"previous_status"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
}
