package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Affiliate statuses
const (
	AffiliateStatusPending  = "pending"
	AffiliateStatusActive   = "active"
	AffiliateStatusRejected = "rejected"
)

// Commission types
const (
	CommissionTypePercentage = "percentage"
	CommissionTypeFixed      = "fixed"
	CommissionTypeTiered     = "tiered"
)

// Affiliate represents a registered promoter entitled to commissions on attributed sales
type Affiliate struct {
	ID                primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	PublicID          string              `json:"publicId" bson:"publicId"` // opaque UUID exposed outside the store
	UserID            string              `json:"userId" bson:"userId"`
	Status            string              `json:"status" bson:"status"` // "pending", "active", "rejected"
	CommissionRate    float64             `json:"commissionRate" bson:"commissionRate"`
	CommissionType    string              `json:"commissionType" bson:"commissionType"`
	PaymentEmail      string              `json:"paymentEmail" bson:"paymentEmail"`
	PaymentMethod     string              `json:"paymentMethod" bson:"paymentMethod"`
	ReferralCode      string              `json:"referralCode" bson:"referralCode"`
	ParentAffiliateID *primitive.ObjectID `json:"parentAffiliateId,omitempty" bson:"parentAffiliateId,omitempty"`
	TierRates         []TierRate          `json:"tierRates,omitempty" bson:"tierRates,omitempty"`
	TotalEarnings     float64             `json:"totalEarnings" bson:"totalEarnings"`
	TotalPaid         float64             `json:"totalPaid" bson:"totalPaid"`
	TotalUnpaid       float64             `json:"totalUnpaid" bson:"totalUnpaid"`
	TotalReferrals    int64               `json:"totalReferrals" bson:"totalReferrals"`
	TotalVisits       int64               `json:"totalVisits" bson:"totalVisits"`
	ConversionRate    float64             `json:"conversionRate" bson:"conversionRate"`
	DateRegistered    time.Time           `json:"dateRegistered" bson:"dateRegistered"`
	DateApproved      *time.Time          `json:"dateApproved,omitempty" bson:"dateApproved,omitempty"`
	Notes             string              `json:"notes,omitempty" bson:"notes,omitempty"`
	Meta              map[string]string   `json:"meta,omitempty" bson:"meta,omitempty"`
}

// IsActive reports whether the affiliate may earn commissions
func (a *Affiliate) IsActive() bool {
	return a != nil && a.Status == AffiliateStatusActive
}

// TierRate is a sales-volume bracket with an associated commission percentage.
// Brackets are evaluated in stored order; the first match wins.
type TierRate struct {
	MinSales float64  `json:"minSales" bson:"minSales"`
	MaxSales *float64 `json:"maxSales,omitempty" bson:"maxSales,omitempty"` // nil means unbounded
	Rate     float64  `json:"rate" bson:"rate"`
}

// AffiliateStats holds the derived projection recomputed from the commission ledger
type AffiliateStats struct {
	TotalEarnings  float64 `json:"totalEarnings"`
	TotalPaid      float64 `json:"totalPaid"`
	TotalUnpaid    float64 `json:"totalUnpaid"`
	TotalReferrals int64   `json:"totalReferrals"`
	TotalVisits    int64   `json:"totalVisits"`
	ConversionRate float64 `json:"conversionRate"`
}
