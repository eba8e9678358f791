package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/animora/animora/app/models"
)

// CreemClient talks to the Creem REST API.
type CreemClient struct {
	APIKey  string
	APIURL  string
	SiteURL string

	HTTPClient *http.Client
}

type checkoutMetadata struct {
	UserID          string `json:"user_id"`
	PlanID          string `json:"plan_id"`
	CreditsPerMonth int64  `json:"credits_per_month"`
}

type checkoutRequest struct {
	CustomerID string           `json:"customer_id"`
	PriceID    string           `json:"price_id"`
	SuccessURL string           `json:"success_url"`
	CancelURL  string           `json:"cancel_url"`
	Metadata   checkoutMetadata `json:"metadata"`
}

type checkoutResponse struct {
	URL         string `json:"url"`
	CheckoutURL string `json:"checkout_url"`
}

// NewCreemClient builds a client from the billing config.
func NewCreemClient(cfg *Config) *CreemClient {
	return &CreemClient{
		APIKey:  cfg.APIKey,
		APIURL:  cfg.APIURL,
		SiteURL: cfg.SiteURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether checkout sessions can be created.
func (c *CreemClient) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APIURL) != ""
}

// CreateCheckoutSession opens a hosted checkout for plan and returns the
// URL the user must be redirected to.
func (c *CreemClient) CreateCheckoutSession(ctx context.Context, userID string, plan *models.SubscriptionPlan) (string, error) {
	if !c.Configured() {
		return "", ErrCheckoutNotConfigured
	}
	if strings.TrimSpace(userID) == "" || plan == nil {
		return "", fmt.Errorf("%w: user_id or plan", ErrMissingField)
	}

	priceID := plan.ProviderProductID
	if priceID == "" {
		priceID = plan.ID
	}
	site := strings.TrimRight(c.SiteURL, "/")
	payload := checkoutRequest{
		CustomerID: userID,
		PriceID:    priceID,
		SuccessURL: site + "/dashboard?subscription=success",
		CancelURL:  site + "/pricing?subscription=canceled",
		Metadata: checkoutMetadata{
			UserID:          userID,
			PlanID:          plan.ID,
			CreditsPerMonth: plan.CreditsPerMonth,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.APIURL, "/") + "/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("creem checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("creem api error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var session checkoutResponse
	if err := json.Unmarshal(respBody, &session); err != nil {
		return "", fmt.Errorf("decode creem checkout response: %w", err)
	}
	url := firstNonEmpty(session.URL, session.CheckoutURL)
	if url == "" {
		return "", fmt.Errorf("creem checkout response without url")
	}
	return url, nil
}

func (c *CreemClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
