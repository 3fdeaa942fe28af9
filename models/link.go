package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AffiliateLink is a tracked destination generated for an affiliate
type AffiliateLink struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AffiliateID    primitive.ObjectID `json:"affiliateId" bson:"affiliateId"`
	URL            string             `json:"url" bson:"url"`
	Campaign       string             `json:"campaign,omitempty" bson:"campaign,omitempty"`
	CreativeID     string             `json:"creativeId,omitempty" bson:"creativeId,omitempty"`
	Clicks         int64              `json:"clicks" bson:"clicks"`
	Conversions    int64              `json:"conversions" bson:"conversions"`
	ConversionRate float64            `json:"conversionRate" bson:"conversionRate"`
	Status         string             `json:"status" bson:"status"` // "active", "inactive"
	DateCreated    time.Time          `json:"dateCreated" bson:"dateCreated"`
}

// ShortLink maps an opaque code to a full tracking URL. Both time-salted
// hashes and caller-chosen custom slugs live in this table.
type ShortLink struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Code        string             `json:"code" bson:"code"`
	URL         string             `json:"url" bson:"url"`
	AffiliateID primitive.ObjectID `json:"affiliateId" bson:"affiliateId"`
	DateCreated time.Time          `json:"dateCreated" bson:"dateCreated"`
}

// GeneratedLink is returned to the caller after link generation
type GeneratedLink struct {
	LinkID   primitive.ObjectID `json:"linkId"`
	URL      string             `json:"url"`
	ShortURL string             `json:"shortUrl"`
	QRCode   string             `json:"qrCode"` // PNG data URI
}

// LinkStats aggregates performance of a single link
type LinkStats struct {
	Clicks         int64   `json:"clicks"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
	Earnings       float64 `json:"earnings"`
}

// ConversionAttribution identifies the credited affiliate for an order
type ConversionAttribution struct {
	AffiliateID primitive.ObjectID  `json:"affiliateId"`
	VisitID     primitive.ObjectID  `json:"visitId"`
	LinkID      *primitive.ObjectID `json:"linkId,omitempty"`
}
