package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Visit records a single qualifying click on an affiliate link. Rows are
// immutable except the conversion fields set at attribution time.
type Visit struct {
	ID           primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	AffiliateID  primitive.ObjectID  `json:"affiliateId" bson:"affiliateId"`
	LinkID       *primitive.ObjectID `json:"linkId,omitempty" bson:"linkId,omitempty"`
	IPAddress    string              `json:"ipAddress" bson:"ipAddress"`
	UserAgent    string              `json:"userAgent" bson:"userAgent"`
	Referrer     string              `json:"referrer,omitempty" bson:"referrer,omitempty"`
	LandingPage  string              `json:"landingPage,omitempty" bson:"landingPage,omitempty"`
	Campaign     string              `json:"campaign,omitempty" bson:"campaign,omitempty"`
	Converted    bool                `json:"converted" bson:"converted"`
	ConversionID string              `json:"conversionId,omitempty" bson:"conversionId,omitempty"`
	DateCreated  time.Time           `json:"dateCreated" bson:"dateCreated"`
}
