package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/repositories"
	"github.com/refstack/affiliate-backend/utils"
)

// AffiliateService owns the affiliate lifecycle: registration, approval,
// referral-code allocation and the derived stats projection.
type AffiliateService struct {
	affiliates repositories.AffiliateRepository
	commission repositories.CommissionRepository
	visits     repositories.VisitRepository
	settings   *config.Settings
	events     EventSink
	now        func() time.Time
}

func NewAffiliateService(
	affiliates repositories.AffiliateRepository,
	commission repositories.CommissionRepository,
	visits repositories.VisitRepository,
	settings *config.Settings,
	events EventSink,
) *AffiliateService {
	return &AffiliateService{
		affiliates: affiliates,
		commission: commission,
		visits:     visits,
		settings:   settings,
		events:     events,
		now:        time.Now,
	}
}

// Create registers a user as an affiliate. The referral code is derived from
// the username, lowercased, with a numeric suffix appended on collision.
func (s *AffiliateService) Create(ctx context.Context, req models.CreateAffiliateRequest) (*models.Affiliate, error) {
	if req.UserID == "" || req.Username == "" {
		return nil, ErrMissingUser
	}

	if _, err := s.affiliates.GetByUserID(ctx, req.UserID); err == nil {
		return nil, ErrAffiliateExists
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	referralCode, err := s.allocateReferralCode(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	paymentEmail := req.PaymentEmail
	if paymentEmail == "" {
		paymentEmail = req.Email
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "paypal"
	}

	now := s.now()
	affiliate := &models.Affiliate{
		PublicID:          uuid.NewString(),
		UserID:            req.UserID,
		Status:            models.AffiliateStatusPending,
		CommissionRate:    s.settings.CommissionRate,
		CommissionType:    s.settings.CommissionType,
		PaymentEmail:      paymentEmail,
		PaymentMethod:     paymentMethod,
		ReferralCode:      referralCode,
		ParentAffiliateID: req.ParentAffiliateID,
		DateRegistered:    now,
	}

	if s.settings.AutoApproveAffiliates {
		affiliate.Status = models.AffiliateStatusActive
		affiliate.DateApproved = &now
	}

	if err := s.affiliates.Insert(ctx, affiliate); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrAffiliateExists
		}
		return nil, fmt.Errorf("failed to create affiliate: %w", err)
	}

	s.events.Emit(EventAffiliateCreated, EventPayload{
		"affiliateId":  affiliate.ID.Hex(),
		"userId":       affiliate.UserID,
		"referralCode": affiliate.ReferralCode,
		"status":       affiliate.Status,
	})

	return affiliate, nil
}

func (s *AffiliateService) allocateReferralCode(ctx context.Context, username string) (string, error) {
	base := utils.Slugify(username)

	code := base
	for counter := 1; ; counter++ {
		exists, err := s.affiliates.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		code = fmt.Sprintf("%s%d", base, counter)
	}
}

// Approve transitions a pending affiliate to active
func (s *AffiliateService) Approve(ctx context.Context, id primitive.ObjectID) error {
	now := s.now()
	if err := s.affiliates.UpdateStatus(ctx, id, models.AffiliateStatusActive, &now, ""); err != nil {
		return mapStoreError(err)
	}

	s.events.Emit(EventAffiliateApproved, EventPayload{"affiliateId": id.Hex()})
	return nil
}

// Reject marks the affiliate rejected, recording the reason in notes
func (s *AffiliateService) Reject(ctx context.Context, id primitive.ObjectID, reason string) error {
	if err := s.affiliates.UpdateStatus(ctx, id, models.AffiliateStatusRejected, nil, reason); err != nil {
		return mapStoreError(err)
	}

	s.events.Emit(EventAffiliateRejected, EventPayload{
		"affiliateId": id.Hex(),
		"reason":      reason,
	})
	return nil
}

func (s *AffiliateService) Get(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error) {
	affiliate, err := s.affiliates.GetByID(ctx, id)
	return affiliate, mapStoreError(err)
}

func (s *AffiliateService) GetByUser(ctx context.Context, userID string) (*models.Affiliate, error) {
	affiliate, err := s.affiliates.GetByUserID(ctx, userID)
	return affiliate, mapStoreError(err)
}

func (s *AffiliateService) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	affiliate, err := s.affiliates.GetByReferralCode(ctx, code)
	return affiliate, mapStoreError(err)
}

func (s *AffiliateService) List(ctx context.Context, filter models.AffiliateFilter) ([]*models.Affiliate, error) {
	return s.affiliates.List(ctx, filter)
}

func (s *AffiliateService) Count(ctx context.Context, filter models.AffiliateFilter) (int64, error) {
	return s.affiliates.Count(ctx, filter)
}

func (s *AffiliateService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return mapStoreError(s.affiliates.Delete(ctx, id))
}

// IsActive reports whether the affiliate may earn commissions
func (s *AffiliateService) IsActive(ctx context.Context, id primitive.ObjectID) bool {
	affiliate, err := s.affiliates.GetByID(ctx, id)
	if err != nil {
		return false
	}
	return affiliate.IsActive()
}

// UpdateStats recomputes the affiliate's derived totals from the commission
// ledger and visit history. The recompute is idempotent: it is a projection,
// not a source of truth, and may be re-run at any time.
func (s *AffiliateService) UpdateStats(ctx context.Context, id primitive.ObjectID, window models.StatsRange) error {
	stats, err := s.ComputeStats(ctx, id, window)
	if err != nil {
		return err
	}

	if err := s.affiliates.UpdateStats(ctx, id, *stats); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// ComputeStats derives the stats projection without persisting it
func (s *AffiliateService) ComputeStats(ctx context.Context, id primitive.ObjectID, window models.StatsRange) (*models.AffiliateStats, error) {
	base := models.CommissionFilter{
		AffiliateID: &id,
		StartDate:   window.StartDate,
		EndDate:     window.EndDate,
	}

	// earnings counts everything not rejected, so earnings = paid + unpaid
	// always holds
	earningsFilter := base
	earningsFilter.Statuses = []string{models.CommissionStatusPending, models.CommissionStatusApproved, models.CommissionStatusPaid}
	earnings, err := s.commission.SumAmount(ctx, earningsFilter)
	if err != nil {
		return nil, err
	}

	unpaidFilter := base
	unpaidFilter.Statuses = []string{models.CommissionStatusPending, models.CommissionStatusApproved}
	unpaid, err := s.commission.SumAmount(ctx, unpaidFilter)
	if err != nil {
		return nil, err
	}

	totalReferrals, err := s.commission.Count(ctx, base)
	if err != nil {
		return nil, err
	}

	totalVisits, err := s.visits.CountByAffiliate(ctx, id, window)
	if err != nil {
		return nil, err
	}

	conversions, err := s.visits.CountConverted(ctx, id, window)
	if err != nil {
		return nil, err
	}

	earningsDec := decimal.NewFromFloat(earnings).Round(MoneyPrecision)
	unpaidDec := decimal.NewFromFloat(unpaid).Round(MoneyPrecision)

	conversionRate := 0.0
	if totalVisits > 0 {
		rate, _ := decimal.NewFromInt(conversions).
			Div(decimal.NewFromInt(totalVisits)).
			Round(MoneyPrecision).Float64()
		conversionRate = rate
	}

	totalEarnings, _ := earningsDec.Float64()
	totalUnpaid, _ := unpaidDec.Float64()
	totalPaid, _ := earningsDec.Sub(unpaidDec).Float64()

	return &models.AffiliateStats{
		TotalEarnings:  totalEarnings,
		TotalPaid:      totalPaid,
		TotalUnpaid:    totalUnpaid,
		TotalReferrals: totalReferrals,
		TotalVisits:    totalVisits,
		ConversionRate: conversionRate,
	}, nil
}

// refreshStats recomputes stats and logs instead of failing the caller: the
// projection is eventually consistent and a missed refresh self-heals on the
// next mutation.
func (s *AffiliateService) refreshStats(ctx context.Context, id primitive.ObjectID) {
	if err := s.UpdateStats(ctx, id, models.StatsRange{}); err != nil {
		log.Printf("WARNING: failed to refresh stats for affiliate %s: %v", id.Hex(), err)
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
