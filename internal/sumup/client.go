// Package sumup talks to the SumUp card payment API: hosted checkouts are
// created and later looked up by our reference (the intent id), and app
// payments are launched through the merchant app's URL scheme.
package sumup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coastie-uk/convention-auction/internal/config"
	"github.com/coastie-uk/convention-auction/internal/model"
)

// ErrUnavailable marks failures talking to the provider (network errors,
// timeouts, 5xx). Callers treat the outcome as unknown and retry later.
var ErrUnavailable = errors.New("payment provider unavailable")

// Checkout statuses reported by the provider.
const (
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
	StatusPaid    = "PAID"
)

// Checkout is a newly created hosted checkout.
type Checkout struct {
	ID  string
	URL string
}

// Transaction is a card transaction attached to a checkout.
type Transaction struct {
	ID              string      `json:"id"`
	TransactionCode string      `json:"transaction_code"`
	Status          string      `json:"status"`
	Amount          json.Number `json:"amount"`
}

// CheckoutStatus is one checkout as returned by a reference lookup.
type CheckoutStatus struct {
	ID                string        `json:"id"`
	CheckoutReference string        `json:"checkout_reference"`
	Status            string        `json:"status"`
	Transactions      []Transaction `json:"transactions"`
}

// Provider is the subset of the SumUp API the reconciler depends on.
type Provider interface {
	CreateHostedCheckout(ctx context.Context, amountMinor int64, currency, reference, description string) (*Checkout, error)
	GetCheckoutsByReference(ctx context.Context, reference string) ([]CheckoutStatus, error)
}

// Client is the HTTP implementation of Provider.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	merchantCode string
	returnURL    string
}

// NewClient builds a client from configuration. returnURL is where the
// provider sends webhook notifications for hosted checkouts.
func NewClient(c config.SumUpConfig, returnURL string) *Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(c.APIBase, "/"),
		apiKey:       c.APIKey,
		merchantCode: c.MerchantCode,
		returnURL:    returnURL,
	}
}

type createCheckoutRequest struct {
	CheckoutReference string         `json:"checkout_reference"`
	Amount            json.Number    `json:"amount"`
	Currency          string         `json:"currency"`
	MerchantCode      string         `json:"merchant_code"`
	Description       string         `json:"description,omitempty"`
	ReturnURL         string         `json:"return_url,omitempty"`
	HostedCheckout    hostedCheckout `json:"hosted_checkout"`
}

type hostedCheckout struct {
	Enabled bool `json:"enabled"`
}

type createCheckoutResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	HostedCheckoutURL string `json:"hosted_checkout_url"`
}

// CreateHostedCheckout creates a hosted checkout for amountMinor and
// returns its id and payment page URL.
func (c *Client) CreateHostedCheckout(ctx context.Context, amountMinor int64, currency, reference, description string) (*Checkout, error) {
	payload := createCheckoutRequest{
		CheckoutReference: reference,
		Amount:            json.Number(model.MinorToMajor(amountMinor).StringFixed(2)),
		Currency:          currency,
		MerchantCode:      c.merchantCode,
		Description:       description,
		ReturnURL:         c.returnURL,
		HostedCheckout:    hostedCheckout{Enabled: true},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout: %w", err)
	}
	var out createCheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/v0.1/checkouts", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.HostedCheckoutURL == "" {
		return nil, fmt.Errorf("create checkout: incomplete response")
	}
	return &Checkout{ID: out.ID, URL: out.HostedCheckoutURL}, nil
}

// GetCheckoutsByReference lists the checkouts created with reference.
func (c *Client) GetCheckoutsByReference(ctx context.Context, reference string) ([]CheckoutStatus, error) {
	var out []CheckoutStatus
	path := "/v0.1/checkouts?checkout_reference=" + url.QueryEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: sumup %d: %s", ErrUnavailable, resp.StatusCode, string(b))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sumup error %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sumup response: %w", err)
	}
	return nil
}
