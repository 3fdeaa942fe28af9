package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusScheduled = "scheduled"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment is a batched settlement of one or more approved commissions
type Payment struct {
	ID            primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	AffiliateID   primitive.ObjectID   `json:"affiliateId" bson:"affiliateId"`
	Amount        float64              `json:"amount" bson:"amount"`
	Currency      string               `json:"currency" bson:"currency"`
	Method        string               `json:"method" bson:"method"` // "paypal", "stripe", "bank_transfer"
	Status        string               `json:"status" bson:"status"`
	TransactionID string               `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	PaymentDate   *time.Time           `json:"paymentDate,omitempty" bson:"paymentDate,omitempty"`
	Notes         string               `json:"notes,omitempty" bson:"notes,omitempty"`
	CommissionIDs []primitive.ObjectID `json:"commissionIds" bson:"commissionIds"`
	DateCreated   time.Time            `json:"dateCreated" bson:"dateCreated"`
	Meta          map[string]string    `json:"meta,omitempty" bson:"meta,omitempty"`
}

// PaymentFilter narrows payment list/count queries
type PaymentFilter struct {
	AffiliateID       *primitive.ObjectID
	Status            string
	Method            string
	StartDate         *time.Time
	EndDate           *time.Time
	PaymentDateBefore *time.Time
	Limit             int64
	Offset            int64
}

// PaymentUpdate carries the mutable payment fields; nil means unchanged
type PaymentUpdate struct {
	Status        *string
	TransactionID *string
	PaymentDate   *time.Time
	Notes         *string
}

// PaymentSummary aggregates settled amounts for a date range
type PaymentSummary struct {
	TotalCompleted float64 `json:"totalCompleted"`
	TotalPending   float64 `json:"totalPending"`
	TotalFailed    float64 `json:"totalFailed"`
	PaymentCount   int64   `json:"paymentCount"`
}

// GatewayResult is what a payment gateway returns on success
type GatewayResult struct {
	TransactionID string `json:"transactionId"`
	Notes         string `json:"notes,omitempty"`
}

// BulkProcessResult reports the outcome of a bulk payment run
type BulkProcessResult struct {
	Successful int                       `json:"successful"`
	Failed     int                       `json:"failed"`
	Results    map[string]BulkItemResult `json:"results"` // keyed by payment id hex
}

// BulkItemResult is the per-payment outcome inside a bulk run
type BulkItemResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Invoice bundles a payment with the affiliate and settled commissions
type Invoice struct {
	Payment     *Payment      `json:"payment"`
	Affiliate   *Affiliate    `json:"affiliate"`
	Commissions []*Commission `json:"commissions"`
	GeneratedAt time.Time     `json:"generatedAt"`
}
