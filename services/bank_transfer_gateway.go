package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/refstack/affiliate-backend/models"
)

// BankTransferGateway records a manual bank payout. The actual transfer
// happens outside the system; this gateway only mints the reference the
// operator quotes on the wire.
type BankTransferGateway struct{}

func NewBankTransferGateway() *BankTransferGateway {
	return &BankTransferGateway{}
}

func (g *BankTransferGateway) Name() string { return "bank_transfer" }

func (g *BankTransferGateway) Pay(ctx context.Context, payment *models.Payment, affiliate *models.Affiliate) (*models.GatewayResult, error) {
	reference := "BT-" + uuid.NewString()
	return &models.GatewayResult{
		TransactionID: reference,
		Notes:         fmt.Sprintf("Manual bank transfer to %s", affiliate.PaymentEmail),
	}, nil
}
