package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commission statuses
const (
	CommissionStatusPending  = "pending"
	CommissionStatusApproved = "approved"
	CommissionStatusPaid     = "paid"
	CommissionStatusRejected = "rejected"
)

// Commission kinds
const (
	CommissionKindSale       = "sale"
	CommissionKindMultiLevel = "multi_level"
)

// Commission is the authoritative ledger entry for money owed to an affiliate
// for a specific order. Amounts are fixed-point with 4 decimal places.
type Commission struct {
	ID                 primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	AffiliateID        primitive.ObjectID  `json:"affiliateId" bson:"affiliateId"`
	OrderID            string              `json:"orderId,omitempty" bson:"orderId,omitempty"`
	OrderTotal         float64             `json:"orderTotal" bson:"orderTotal"`
	CommissionAmount   float64             `json:"commissionAmount" bson:"commissionAmount"`
	CommissionRate     float64             `json:"commissionRate" bson:"commissionRate"`
	CommissionType     string              `json:"commissionType" bson:"commissionType"`
	Currency           string              `json:"currency" bson:"currency"`
	Status             string              `json:"status" bson:"status"` // "pending", "approved", "paid", "rejected"
	Kind               string              `json:"type" bson:"type"`     // "sale", "multi_level"
	Description        string              `json:"description,omitempty" bson:"description,omitempty"`
	Reference          string              `json:"reference,omitempty" bson:"reference,omitempty"`
	VisitID            *primitive.ObjectID `json:"visitId,omitempty" bson:"visitId,omitempty"`
	ParentCommissionID *primitive.ObjectID `json:"parentCommissionId,omitempty" bson:"parentCommissionId,omitempty"`
	Level              int                 `json:"level" bson:"level"` // 1 = direct, 2+ = upline
	PaymentID          *primitive.ObjectID `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	DateCreated        time.Time           `json:"dateCreated" bson:"dateCreated"`
	DatePaid           *time.Time          `json:"datePaid,omitempty" bson:"datePaid,omitempty"`
	Meta               map[string]string   `json:"meta,omitempty" bson:"meta,omitempty"`
}

// CommissionFilter narrows commission list/count/sum queries
type CommissionFilter struct {
	AffiliateID *primitive.ObjectID
	Statuses    []string
	Kind        string
	StartDate   *time.Time
	EndDate     *time.Time
	VisitIDs    []primitive.ObjectID
	Search      string // matched against reference, description and order id
	Unassigned  bool   // only commissions not yet attached to a payment
	OrderBy     string // "date_created"
	Ascending   bool
	Limit       int64
	Offset      int64
}

// CommissionUpdate carries the mutable commission fields; nil means unchanged
type CommissionUpdate struct {
	Status      *string
	Amount      *float64
	Description *string
	Reference   *string
	DatePaid    *time.Time
	PaymentID   *primitive.ObjectID
	Meta        map[string]string
}

// UpdateCommissionRequest edits a ledger row; omitted fields are left alone
type UpdateCommissionRequest struct {
	Status           *string  `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	CommissionAmount *float64 `json:"commissionAmount" validate:"omitempty,gte=0"`
	Description      *string  `json:"description"`
	Reference        *string  `json:"reference"`
}
