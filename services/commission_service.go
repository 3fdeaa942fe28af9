package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/repositories"
)

// CommissionService owns the commission ledger: calculation, creation with
// order-level idempotence, the approval lifecycle and the multi-level cascade.
type CommissionService struct {
	commissions repositories.CommissionRepository
	affiliates  *AffiliateService
	settings    *config.Settings
	events      EventSink
	now         func() time.Time
}

func NewCommissionService(
	commissions repositories.CommissionRepository,
	affiliates *AffiliateService,
	settings *config.Settings,
	events EventSink,
) *CommissionService {
	return &CommissionService{
		commissions: commissions,
		affiliates:  affiliates,
		settings:    settings,
		events:      events,
		now:         time.Now,
	}
}

// CalculateCommission computes the amount owed for an order under the given
// rate and type. Tiered rates select the first bracket matching the
// affiliate's accumulated earnings and apply its percentage to the order.
func (s *CommissionService) CalculateCommission(affiliate *models.Affiliate, orderTotal, rate float64, commissionType string) float64 {
	total := decimal.NewFromFloat(orderTotal)
	rateDec := decimal.NewFromFloat(rate)

	switch commissionType {
	case models.CommissionTypeFixed:
		return moneyFloat(rateDec)

	case models.CommissionTypeTiered:
		volume := decimal.NewFromFloat(affiliate.TotalEarnings)
		for _, tier := range affiliate.TierRates {
			if volume.LessThan(decimal.NewFromFloat(tier.MinSales)) {
				continue
			}
			if tier.MaxSales != nil && volume.GreaterThan(decimal.NewFromFloat(*tier.MaxSales)) {
				continue
			}
			return moneyFloat(total.Mul(decimal.NewFromFloat(tier.Rate)).Div(decimal.NewFromInt(100)))
		}
		// no bracket matches this volume, nothing is owed
		return 0

	default: // percentage
		return moneyFloat(total.Mul(rateDec).Div(decimal.NewFromInt(100)))
	}
}

// CreateCommission records a commission for an order. The (affiliate, order,
// kind) unique index makes the call idempotent: a repeated order yields
// ErrCommissionExists and no second ledger entry.
func (s *CommissionService) CreateCommission(ctx context.Context, req models.CreateCommissionRequest) (*models.Commission, error) {
	affiliate, err := s.affiliates.Get(ctx, req.AffiliateID)
	if err != nil {
		return nil, err
	}
	if !affiliate.IsActive() {
		return nil, ErrInactiveAffiliate
	}

	rate := req.CommissionRate
	if rate == 0 {
		rate = affiliate.CommissionRate
	}
	commissionType := req.CommissionType
	if commissionType == "" {
		commissionType = affiliate.CommissionType
	}
	currency := req.Currency
	if currency == "" {
		currency = s.settings.Currency
	}
	kind := req.Kind
	if kind == "" {
		kind = models.CommissionKindSale
	}

	amount := req.CommissionAmount
	if amount == 0 {
		amount = s.CalculateCommission(affiliate, req.OrderTotal, rate, commissionType)
	} else {
		amount = moneyFloat(decimal.NewFromFloat(amount))
	}

	commission := &models.Commission{
		AffiliateID:      affiliate.ID,
		OrderID:          req.OrderID,
		OrderTotal:       req.OrderTotal,
		CommissionAmount: amount,
		CommissionRate:   rate,
		CommissionType:   commissionType,
		Currency:         currency,
		Status:           models.CommissionStatusPending,
		Kind:             kind,
		Description:      req.Description,
		Reference:        req.Reference,
		VisitID:          req.VisitID,
		Level:            1,
		DateCreated:      s.now(),
	}

	if err := s.commissions.Insert(ctx, commission); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrCommissionExists
		}
		return nil, fmt.Errorf("failed to create commission: %w", err)
	}

	s.events.Emit(EventCommissionCreated, EventPayload{
		"commissionId": commission.ID.Hex(),
		"affiliateId":  affiliate.ID.Hex(),
		"orderId":      commission.OrderID,
		"amount":       commission.CommissionAmount,
		"currency":     commission.Currency,
	})

	s.affiliates.refreshStats(ctx, affiliate.ID)

	if s.settings.EnableMultiLevel && kind == models.CommissionKindSale {
		s.cascade(ctx, commission, affiliate)
	}

	return commission, nil
}

// cascade walks the upline from the earning affiliate and records a
// multi_level commission per configured level. The walk stops at a missing
// or inactive ancestor and is bounded by MaxLevels and a visited set, so a
// cyclic parent chain cannot loop.
func (s *CommissionService) cascade(ctx context.Context, origin *models.Commission, affiliate *models.Affiliate) {
	visited := map[primitive.ObjectID]bool{affiliate.ID: true}
	current := affiliate

	for level := 2; level <= s.settings.MaxLevels; level++ {
		if current.ParentAffiliateID == nil {
			return
		}
		parentID := *current.ParentAffiliateID
		if visited[parentID] {
			log.Printf("WARNING: cycle in upline chain at affiliate %s, stopping cascade", parentID.Hex())
			return
		}
		visited[parentID] = true

		parent, err := s.affiliates.Get(ctx, parentID)
		if err != nil {
			log.Printf("WARNING: upline affiliate %s not found, stopping cascade: %v", parentID.Hex(), err)
			return
		}

		if !parent.IsActive() {
			return
		}

		rate := s.settings.LevelRate(level)
		if rate > 0 {
			amount := moneyFloat(decimal.NewFromFloat(origin.OrderTotal).
				Mul(decimal.NewFromFloat(rate)).
				Div(decimal.NewFromInt(100)))

			upline := &models.Commission{
				AffiliateID:        parent.ID,
				OrderID:            origin.OrderID,
				OrderTotal:         origin.OrderTotal,
				CommissionAmount:   amount,
				CommissionRate:     rate,
				CommissionType:     models.CommissionTypePercentage,
				Currency:           origin.Currency,
				Status:             models.CommissionStatusPending,
				Kind:               models.CommissionKindMultiLevel,
				Description:        fmt.Sprintf("Level %d commission from affiliate %s", level, affiliate.ReferralCode),
				Reference:          origin.Reference,
				VisitID:            origin.VisitID,
				ParentCommissionID: &origin.ID,
				Level:              level,
				DateCreated:        s.now(),
			}

			if err := s.commissions.Insert(ctx, upline); err != nil {
				if !errors.Is(err, repositories.ErrDuplicateKey) {
					log.Printf("WARNING: failed to record level %d commission for affiliate %s: %v", level, parent.ID.Hex(), err)
				}
			} else {
				s.events.Emit(EventCommissionCreated, EventPayload{
					"commissionId": upline.ID.Hex(),
					"affiliateId":  parent.ID.Hex(),
					"orderId":      upline.OrderID,
					"amount":       upline.CommissionAmount,
					"currency":     upline.Currency,
					"level":        level,
				})
				s.affiliates.refreshStats(ctx, parent.ID)
			}
		}

		current = parent
	}
}

// Approve moves a pending commission into the payable pool
func (s *CommissionService) Approve(ctx context.Context, id primitive.ObjectID) error {
	status := models.CommissionStatusApproved
	commission, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.commissions.Update(ctx, id, models.CommissionUpdate{Status: &status}); err != nil {
		return mapStoreError(err)
	}

	s.events.Emit(EventCommissionApproved, EventPayload{
		"commissionId": id.Hex(),
		"affiliateId":  commission.AffiliateID.Hex(),
		"amount":       commission.CommissionAmount,
	})
	s.affiliates.refreshStats(ctx, commission.AffiliateID)
	return nil
}

// Reject marks a commission rejected, keeping the reason in meta
func (s *CommissionService) Reject(ctx context.Context, id primitive.ObjectID, reason string) error {
	status := models.CommissionStatusRejected
	commission, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	update := models.CommissionUpdate{Status: &status}
	if reason != "" {
		update.Meta = map[string]string{"rejection_reason": reason}
	}
	if err := s.commissions.Update(ctx, id, update); err != nil {
		return mapStoreError(err)
	}

	s.events.Emit(EventCommissionRejected, EventPayload{
		"commissionId": id.Hex(),
		"affiliateId":  commission.AffiliateID.Hex(),
		"reason":       reason,
	})
	s.affiliates.refreshStats(ctx, commission.AffiliateID)
	return nil
}

// Update edits a commission's status, amount, description or reference
func (s *CommissionService) Update(ctx context.Context, id primitive.ObjectID, req models.UpdateCommissionRequest) (*models.Commission, error) {
	commission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	update := models.CommissionUpdate{
		Status:      req.Status,
		Description: req.Description,
		Reference:   req.Reference,
	}
	if req.CommissionAmount != nil {
		amount := moneyFloat(decimal.NewFromFloat(*req.CommissionAmount))
		update.Amount = &amount
	}
	if err := s.commissions.Update(ctx, id, update); err != nil {
		return nil, mapStoreError(err)
	}

	s.affiliates.refreshStats(ctx, commission.AffiliateID)
	return s.Get(ctx, id)
}

// MarkPaid settles a commission under the given payment
func (s *CommissionService) MarkPaid(ctx context.Context, id, paymentID primitive.ObjectID) error {
	status := models.CommissionStatusPaid
	commission, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	update := models.CommissionUpdate{
		Status:    &status,
		DatePaid:  &now,
		PaymentID: &paymentID,
	}
	if err := s.commissions.Update(ctx, id, update); err != nil {
		return mapStoreError(err)
	}

	s.events.Emit(EventCommissionPaid, EventPayload{
		"commissionId": id.Hex(),
		"affiliateId":  commission.AffiliateID.Hex(),
		"paymentId":    paymentID.Hex(),
		"amount":       commission.CommissionAmount,
	})
	s.affiliates.refreshStats(ctx, commission.AffiliateID)
	return nil
}

func (s *CommissionService) Get(ctx context.Context, id primitive.ObjectID) (*models.Commission, error) {
	commission, err := s.commissions.GetByID(ctx, id)
	return commission, mapStoreError(err)
}

func (s *CommissionService) List(ctx context.Context, filter models.CommissionFilter) ([]*models.Commission, error) {
	return s.commissions.List(ctx, filter)
}

func (s *CommissionService) Count(ctx context.Context, filter models.CommissionFilter) (int64, error) {
	return s.commissions.Count(ctx, filter)
}

// SumUnpaid totals the affiliate's pending and approved commissions
func (s *CommissionService) SumUnpaid(ctx context.Context, affiliateID primitive.ObjectID) (float64, error) {
	sum, err := s.commissions.SumAmount(ctx, models.CommissionFilter{
		AffiliateID: &affiliateID,
		Statuses:    []string{models.CommissionStatusPending, models.CommissionStatusApproved},
	})
	if err != nil {
		return 0, err
	}
	return moneyFloat(decimal.NewFromFloat(sum)), nil
}

func (s *CommissionService) Delete(ctx context.Context, id primitive.ObjectID) error {
	commission, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.commissions.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	s.affiliates.refreshStats(ctx, commission.AffiliateID)
	return nil
}
