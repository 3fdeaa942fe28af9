// Package repositories implements the record store over MongoDB. Every
// repository is exposed through an interface so services can take test
// doubles; filters are built as bson documents, never concatenated strings.
package repositories

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refstack/affiliate-backend/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey is returned when an insert violates a unique index
var ErrDuplicateKey = errors.New("duplicate key")

const queryTimeout = 10 * time.Second

// AffiliateRepository persists affiliates
type AffiliateRepository interface {
	Insert(ctx context.Context, affiliate *models.Affiliate) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error)
	GetByUserID(ctx context.Context, userID string) (*models.Affiliate, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string, approvedAt *time.Time, notes string) error
	UpdateStats(ctx context.Context, id primitive.ObjectID, stats models.AffiliateStats) error
	List(ctx context.Context, filter models.AffiliateFilter) ([]*models.Affiliate, error)
	Count(ctx context.Context, filter models.AffiliateFilter) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// CommissionRepository persists the commission ledger
type CommissionRepository interface {
	Insert(ctx context.Context, commission *models.Commission) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.CommissionUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter models.CommissionFilter) ([]*models.Commission, error)
	Count(ctx context.Context, filter models.CommissionFilter) (int64, error)
	SumAmount(ctx context.Context, filter models.CommissionFilter) (float64, error)
	// Reserve attaches a payment id to commissions that are not yet attached
	// to any payment, returning how many rows were claimed.
	Reserve(ctx context.Context, ids []primitive.ObjectID, paymentID primitive.ObjectID) (int64, error)
	// Release detaches commissions from a payment and restores them to approved.
	Release(ctx context.Context, paymentID primitive.ObjectID) error
}

// VisitRepository persists click records
type VisitRepository interface {
	Insert(ctx context.Context, visit *models.Visit) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Visit, error)
	CountSameDay(ctx context.Context, affiliateID primitive.ObjectID, ip string, day time.Time) (int64, error)
	CountSince(ctx context.Context, affiliateID primitive.ObjectID, ip string, since time.Time) (int64, error)
	FirstByIP(ctx context.Context, ip string) (*models.Visit, error)
	LatestUnconverted(ctx context.Context, affiliateID primitive.ObjectID, ip string) (*models.Visit, error)
	MarkConverted(ctx context.Context, id primitive.ObjectID, orderID string) error
	CountByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, window models.StatsRange) (int64, error)
	CountConverted(ctx context.Context, affiliateID primitive.ObjectID, window models.StatsRange) (int64, error)
	IDsByLink(ctx context.Context, linkID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// LinkRepository persists affiliate links
type LinkRepository interface {
	Insert(ctx context.Context, link *models.AffiliateLink) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.AffiliateLink, error)
	ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, status string, limit, offset int64) ([]*models.AffiliateLink, error)
	IncrementClicks(ctx context.Context, id primitive.ObjectID) error
	IncrementConversions(ctx context.Context, id primitive.ObjectID) error
}

// ShortLinkRepository persists the code -> URL side table
type ShortLinkRepository interface {
	Insert(ctx context.Context, shortLink *models.ShortLink) error
	GetByCode(ctx context.Context, code string) (*models.ShortLink, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// PaymentRepository persists payouts
type PaymentRepository interface {
	Insert(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.PaymentUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error)
	SumByStatus(ctx context.Context, status string, window models.StatsRange) (float64, error)
	Count(ctx context.Context, filter models.PaymentFilter) (int64, error)
}

// regexEscape neutralises regex metacharacters in user-supplied search terms
func regexEscape(s string) string {
	return regexp.QuoteMeta(s)
}

// wrapMongoError maps driver errors to the repository sentinels
func wrapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}
