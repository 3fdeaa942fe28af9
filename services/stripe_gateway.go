package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refstack/affiliate-backend/models"
)

// StripeGateway sends payouts as Stripe transfers to connected accounts.
// The affiliate's payment email is resolved to a connected account id stored
// in affiliate meta under "stripe_account".
type StripeGateway struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewStripeGateway() *StripeGateway {
	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		log.Printf("WARNING: STRIPE_SECRET_KEY is missing")
		log.Printf("Please set this environment variable for Stripe payouts to work")
	}

	return &StripeGateway{
		baseURL:    "https://api.stripe.com",
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

type stripeTransferResponse struct {
	ID string `json:"id"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Pay creates a transfer for the payment amount. Stripe amounts are integer
// minor units, so the decimal amount is shifted two places before sending.
func (g *StripeGateway) Pay(ctx context.Context, payment *models.Payment, affiliate *models.Affiliate) (*models.GatewayResult, error) {
	if g.secretKey == "" {
		return nil, fmt.Errorf("missing Stripe credentials. Please set STRIPE_SECRET_KEY environment variable")
	}

	account := affiliate.Meta["stripe_account"]
	if account == "" {
		return nil, fmt.Errorf("affiliate %s has no connected Stripe account", affiliate.ID.Hex())
	}

	minorUnits := decimal.NewFromFloat(payment.Amount).Shift(2).Round(0).IntPart()

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", minorUnits))
	form.Set("currency", strings.ToLower(payment.Currency))
	form.Set("destination", account)
	form.Set("transfer_group", payment.ID.Hex())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/transfers", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Idempotency-Key", payment.ID.Hex())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var stripeErr stripeErrorResponse
		if err := json.Unmarshal(body, &stripeErr); err == nil && stripeErr.Error.Message != "" {
			return nil, fmt.Errorf("stripe transfer failed: %s", stripeErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe transfer returned status %d: %s", resp.StatusCode, string(body))
	}

	var transfer stripeTransferResponse
	if err := json.Unmarshal(body, &transfer); err != nil {
		return nil, fmt.Errorf("failed to decode transfer response: %w", err)
	}

	return &models.GatewayResult{TransactionID: transfer.ID}, nil
}
