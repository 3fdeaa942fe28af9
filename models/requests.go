package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Response is the standard API envelope
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateAffiliateRequest registers a user as an affiliate. Username seeds the
// referral code; the payment email falls back to the account email.
type CreateAffiliateRequest struct {
	UserID            string              `json:"userId" validate:"required"`
	Username          string              `json:"username" validate:"required"`
	Email             string              `json:"email" validate:"omitempty,email"`
	PaymentEmail      string              `json:"paymentEmail" validate:"omitempty,email"`
	PaymentMethod     string              `json:"paymentMethod" validate:"omitempty,oneof=paypal stripe bank_transfer"`
	ParentAffiliateID *primitive.ObjectID `json:"parentAffiliateId,omitempty"`
}

// AffiliateFilter narrows affiliate list/count queries
type AffiliateFilter struct {
	Status string
	Search string // matched against referral code and user id
	Limit  int64
	Offset int64
}

// GenerateLinkRequest asks for a new tracked link
type GenerateLinkRequest struct {
	AffiliateID primitive.ObjectID `json:"affiliateId" validate:"required"`
	URL         string             `json:"url" validate:"required,url"`
	Campaign    string             `json:"campaign"`
	CreativeID  string             `json:"creativeId"`
	CustomSlug  string             `json:"customSlug"`
}

// RecordVisitRequest carries everything the tracker needs about a click
type RecordVisitRequest struct {
	AffiliateID   primitive.ObjectID
	LinkID        *primitive.ObjectID
	IPAddress     string
	UserAgent     string
	Referrer      string
	LandingPage   string
	Campaign      string
	Authenticated bool
}

// CreateCommissionRequest asks the engine to commission an order.
// CommissionAmount zero means "compute it from rate and type".
type CreateCommissionRequest struct {
	AffiliateID      primitive.ObjectID  `json:"affiliateId" validate:"required"`
	OrderID          string              `json:"orderId"`
	OrderTotal       float64             `json:"orderTotal" validate:"gte=0"`
	CommissionAmount float64             `json:"commissionAmount"`
	CommissionRate   float64             `json:"commissionRate"`
	CommissionType   string              `json:"commissionType" validate:"omitempty,oneof=percentage fixed tiered"`
	Currency         string              `json:"currency"`
	Kind             string              `json:"type"`
	Description      string              `json:"description"`
	Reference        string              `json:"reference"`
	VisitID          *primitive.ObjectID `json:"visitId,omitempty"`
}

// ConversionRequest is the order-completion webhook payload. An empty
// AttributionMethod uses the configured default.
type ConversionRequest struct {
	OrderID           string  `json:"orderId" validate:"required"`
	OrderTotal        float64 `json:"orderTotal" validate:"gt=0"`
	Currency          string  `json:"currency"`
	Reference         string  `json:"reference"`
	AttributionMethod string  `json:"attributionMethod" validate:"omitempty,oneof=last_click first_click"`
}

// PayoutRequest asks for a batched settlement of approved commissions
type PayoutRequest struct {
	AffiliateID primitive.ObjectID `json:"affiliateId" validate:"required"`
	Amount      float64            `json:"amount" validate:"gt=0"`
	Method      string             `json:"method" validate:"omitempty,oneof=paypal stripe bank_transfer"`
}

// MassPayoutRequest batches payouts for many affiliates at once. An empty
// AffiliateIDs list sweeps every active affiliate; a zero MinimumAmount uses
// the configured payout minimum.
type MassPayoutRequest struct {
	AffiliateIDs  []primitive.ObjectID `json:"affiliateIds"`
	MinimumAmount float64              `json:"minimumAmount" validate:"gte=0"`
	Method        string               `json:"method" validate:"omitempty,oneof=paypal stripe bank_transfer"`
}

// StatsRange optionally scopes a stat recompute to a date window
type StatsRange struct {
	StartDate *time.Time
	EndDate   *time.Time
}
