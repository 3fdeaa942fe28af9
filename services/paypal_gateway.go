package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/refstack/affiliate-backend/models"
)

// PayPalGateway sends payouts through the PayPal Payouts API
type PayPalGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewPayPalGateway reads credentials from the environment. PAYPAL_ENV=live
// selects the production endpoint; everything else uses the sandbox.
func NewPayPalGateway() *PayPalGateway {
	baseURL := "https://api-m.sandbox.paypal.com"
	if os.Getenv("PAYPAL_ENV") == "live" {
		baseURL = "https://api-m.paypal.com"
	}

	clientID := os.Getenv("PAYPAL_CLIENT_ID")
	clientSecret := os.Getenv("PAYPAL_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		log.Printf("WARNING: PayPal credentials not fully configured:")
		if clientID == "" {
			log.Printf("  - PAYPAL_CLIENT_ID is missing")
		}
		if clientSecret == "" {
			log.Printf("  - PAYPAL_CLIENT_SECRET is missing")
		}
		log.Printf("Please set these environment variables for PayPal payouts to work")
	}

	return &PayPalGateway{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *PayPalGateway) Name() string { return "paypal" }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type paypalPayoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

// Pay submits a single-item payout batch to the affiliate's payment email
func (g *PayPalGateway) Pay(ctx context.Context, payment *models.Payment, affiliate *models.Affiliate) (*models.GatewayResult, error) {
	if g.clientID == "" || g.clientSecret == "" {
		return nil, fmt.Errorf("missing PayPal credentials. Please set PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET environment variables")
	}
	if affiliate.PaymentEmail == "" {
		return nil, fmt.Errorf("affiliate %s has no payment email", affiliate.ID.Hex())
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with PayPal: %w", err)
	}

	payload := map[string]interface{}{
		"sender_batch_header": map[string]interface{}{
			"sender_batch_id": payment.ID.Hex(),
			"email_subject":   "You have a payout!",
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"receiver":       affiliate.PaymentEmail,
				"sender_item_id": uuid.NewString(),
				"amount": map[string]string{
					"value":    fmt.Sprintf("%.2f", payment.Amount),
					"currency": payment.Currency,
				},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments/payouts", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payout response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paypal payout returned status %d: %s", resp.StatusCode, string(body))
	}

	var payout paypalPayoutResponse
	if err := json.Unmarshal(body, &payout); err != nil {
		return nil, fmt.Errorf("failed to decode payout response: %w", err)
	}

	return &models.GatewayResult{
		TransactionID: payout.BatchHeader.PayoutBatchID,
		Notes:         "PayPal batch status: " + payout.BatchHeader.BatchStatus,
	}, nil
}

func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
