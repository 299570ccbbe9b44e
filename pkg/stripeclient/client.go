/**
 * @description
 * This package provides a client for the Stripe Connect API surface the
 * payments service uses: creating Express accounts, generating hosted
 * onboarding links, and fetching live account state.
 *
 * Key features:
 * - Manages the API base URL and secret key.
 * - Speaks Stripe's form-encoded request protocol and bearer auth.
 * - Supports idempotency keys on account creation so a retried create can
 *   never mint a second account for the same seller.
 *
 * @dependencies
 * - context, net/http, net/url, strings, encoding/json: Standard Go libraries.
 * - The service's internal domain package for Stripe response models.
 */
package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andriel300/tec-shop-sub000/internal/domain"
)

// apiVersion pins the Stripe API version so response shapes stay stable.
const apiVersion = "2024-06-20"

// Client is a client for the Stripe API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Stripe API client. Calls are bounded by a 10s
// timeout; a slow provider surfaces as an error rather than a hung request.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ErrorResponse represents an error returned by the Stripe API.
type ErrorResponse struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Param   string `json:"param"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("stripe api error: %s (%s)", e.Err.Message, e.Err.Type)
	}
	return "unknown stripe api error"
}

// CreateAccount creates a new Express account seeded from the seller's
// profile. The idempotency key makes the call safe to retry: Stripe replays
// the original result instead of creating a second account.
func (c *Client) CreateAccount(ctx context.Context, profile domain.SellerProfile, idempotencyKey string) (*domain.StripeAccount, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", profile.Country)
	form.Set("email", profile.Email)
	form.Set("business_profile[name]", profile.BusinessName)
	if profile.Website != "" {
		form.Set("business_profile[url]", profile.Website)
	}
	form.Set("capabilities[card_payments][requested]", "true")
	form.Set("capabilities[transfers][requested]", "true")

	var account domain.StripeAccount
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", form, idempotencyKey, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccountLink asks Stripe for a fresh hosted-onboarding URL for the
// given account. The link is single-use and expires after a few minutes.
func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*domain.StripeAccountLink, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var link domain.StripeAccountLink
	if err := c.do(ctx, http.MethodPost, "/v1/account_links", form, "", &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// GetAccount fetches the live state of a connected account.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.StripeAccount, error) {
	var account domain.StripeAccount
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+accountID, nil, "", &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// do is a helper function to make HTTP requests to the Stripe API.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, target interface{}) error {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Stripe-Version", apiVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			log.Printf("level=warn component=stripe_client op=%s path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", method, path, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=stripe_client op=%s path=%s status=%d code=%q msg=%q", method, path, resp.StatusCode, errResp.Err.Code, errResp.Err.Message)
		return &errResp
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}

	return nil
}
