package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/repositories"
)

// gatewayTimeout bounds a single gateway call
const gatewayTimeout = 60 * time.Second

// scheduledBatchSize caps how many due payments one sweep picks up
const scheduledBatchSize = 50

// PaymentService owns payouts: selecting commissions for settlement,
// executing them through gateways, scheduling and invoicing.
type PaymentService struct {
	payments    repositories.PaymentRepository
	commissions *CommissionService
	affiliates  *AffiliateService
	gateways    *GatewayRegistry
	settings    *config.Settings
	events      EventSink
	now         func() time.Time
}

func NewPaymentService(
	payments repositories.PaymentRepository,
	commissions *CommissionService,
	affiliates *AffiliateService,
	gateways *GatewayRegistry,
	settings *config.Settings,
	events EventSink,
) *PaymentService {
	return &PaymentService{
		payments:    payments,
		commissions: commissions,
		affiliates:  affiliates,
		gateways:    gateways,
		settings:    settings,
		events:      events,
		now:         time.Now,
	}
}

// RequestPayout batches approved commissions into a pending payment. Approved
// commissions are taken oldest first until their running total reaches the
// requested amount; the last one may push the payment past it, and a thinner
// approved pool yields a smaller payment. The payout settles whole
// commissions and never splits one.
func (s *PaymentService) RequestPayout(ctx context.Context, req models.PayoutRequest) (*models.Payment, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount < s.settings.MinimumPayout {
		return nil, ErrBelowMinimum
	}

	affiliate, err := s.affiliates.Get(ctx, req.AffiliateID)
	if err != nil {
		return nil, err
	}

	unpaid, err := s.commissions.SumUnpaid(ctx, affiliate.ID)
	if err != nil {
		return nil, err
	}
	if decimal.NewFromFloat(req.Amount).GreaterThan(decimal.NewFromFloat(unpaid)) {
		return nil, ErrInsufficientUnpaid
	}

	return s.createPayout(ctx, affiliate, req.Amount, req.Method)
}

// createPayout selects and reserves commissions and writes the payment row.
// Validation of the requested amount is the caller's job.
func (s *PaymentService) createPayout(ctx context.Context, affiliate *models.Affiliate, amount float64, method string) (*models.Payment, error) {
	selected, total, err := s.selectCommissions(ctx, affiliate.ID, amount)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, ErrNoEligibleCommission
	}

	if method == "" {
		method = affiliate.PaymentMethod
	}

	ids := make([]primitive.ObjectID, len(selected))
	for i, commission := range selected {
		ids[i] = commission.ID
	}

	payment := &models.Payment{
		AffiliateID:   affiliate.ID,
		Amount:        moneyFloat(total),
		Currency:      s.settings.Currency,
		Method:        method,
		Status:        models.PaymentStatusPending,
		CommissionIDs: ids,
		DateCreated:   s.now(),
	}
	if err := s.payments.Insert(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	reserved, err := s.commissions.commissions.Reserve(ctx, ids, payment.ID)
	if err != nil {
		return nil, err
	}
	if reserved != int64(len(ids)) {
		// a concurrent payout claimed some of these commissions first
		if err := s.commissions.commissions.Release(ctx, payment.ID); err != nil {
			log.Printf("WARNING: failed to release commissions for payment %s: %v", payment.ID.Hex(), err)
		}
		if err := s.payments.Delete(ctx, payment.ID); err != nil {
			log.Printf("WARNING: failed to delete conflicted payment %s: %v", payment.ID.Hex(), err)
		}
		return nil, ErrNoEligibleCommission
	}

	s.events.Emit(EventPaymentCreated, EventPayload{
		"paymentId":   payment.ID.Hex(),
		"affiliateId": affiliate.ID.Hex(),
		"amount":      payment.Amount,
		"method":      payment.Method,
	})

	return payment, nil
}

func (s *PaymentService) selectCommissions(ctx context.Context, affiliateID primitive.ObjectID, amount float64) ([]*models.Commission, decimal.Decimal, error) {
	candidates, err := s.commissions.List(ctx, models.CommissionFilter{
		AffiliateID: &affiliateID,
		Statuses:    []string{models.CommissionStatusApproved},
		Unassigned:  true,
		Ascending:   true,
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	requested := decimal.NewFromFloat(amount)
	total := decimal.Zero
	var selected []*models.Commission

	for _, commission := range candidates {
		if total.GreaterThanOrEqual(requested) {
			break
		}
		selected = append(selected, commission)
		total = total.Add(decimal.NewFromFloat(commission.CommissionAmount))
	}
	return selected, total, nil
}

// ProcessPayment executes a pending or due scheduled payment through its
// gateway; a non-empty gatewayName overrides the payment's stored method for
// this run. Success settles every attached commission; failure records the
// gateway error on the payment and leaves the commissions reserved for retry.
func (s *PaymentService) ProcessPayment(ctx context.Context, id primitive.ObjectID, gatewayName string) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending && payment.Status != models.PaymentStatusScheduled {
		return nil, ErrPaymentNotPending
	}

	method := payment.Method
	if gatewayName != "" {
		method = gatewayName
	}
	gateway, ok := s.gateways.Get(method)
	if !ok {
		return nil, ErrInvalidGateway
	}

	affiliate, err := s.affiliates.Get(ctx, payment.AffiliateID)
	if err != nil {
		return nil, err
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	result, err := gateway.Pay(gatewayCtx, payment, affiliate)
	if err != nil {
		failed := models.PaymentStatusFailed
		notes := err.Error()
		if updateErr := s.payments.Update(ctx, id, models.PaymentUpdate{Status: &failed, Notes: &notes}); updateErr != nil {
			log.Printf("WARNING: failed to mark payment %s failed: %v", id.Hex(), updateErr)
		}
		s.events.Emit(EventPaymentFailed, EventPayload{
			"paymentId":   id.Hex(),
			"affiliateId": payment.AffiliateID.Hex(),
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("gateway %s failed: %w", method, err)
	}

	completed := models.PaymentStatusCompleted
	now := s.now()
	update := models.PaymentUpdate{
		Status:        &completed,
		TransactionID: &result.TransactionID,
		PaymentDate:   &now,
	}
	if result.Notes != "" {
		update.Notes = &result.Notes
	}
	if err := s.payments.Update(ctx, id, update); err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	for _, commissionID := range payment.CommissionIDs {
		if err := s.commissions.MarkPaid(ctx, commissionID, payment.ID); err != nil {
			log.Printf("WARNING: failed to mark commission %s paid under payment %s: %v", commissionID.Hex(), id.Hex(), err)
		}
	}

	s.events.Emit(EventPaymentCompleted, EventPayload{
		"paymentId":     id.Hex(),
		"affiliateId":   payment.AffiliateID.Hex(),
		"amount":        payment.Amount,
		"transactionId": result.TransactionID,
	})

	return s.Get(ctx, id)
}

// BulkProcess runs a set of payments and reports per-payment outcomes; a
// non-empty gatewayName applies to every payment in the batch. One failing
// payment never stops the batch.
func (s *PaymentService) BulkProcess(ctx context.Context, ids []primitive.ObjectID, gatewayName string) *models.BulkProcessResult {
	result := &models.BulkProcessResult{Results: make(map[string]models.BulkItemResult)}

	for _, id := range ids {
		payment, err := s.ProcessPayment(ctx, id, gatewayName)
		if err != nil {
			result.Failed++
			result.Results[id.Hex()] = models.BulkItemResult{Error: err.Error()}
			continue
		}
		result.Successful++
		result.Results[id.Hex()] = models.BulkItemResult{
			Success:       true,
			TransactionID: payment.TransactionID,
		}
	}
	return result
}

// SchedulePayment defers a pending payment until the given time
func (s *PaymentService) SchedulePayment(ctx context.Context, id primitive.ObjectID, when time.Time) error {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		return ErrPaymentNotPending
	}

	scheduled := models.PaymentStatusScheduled
	return mapStoreError(s.payments.Update(ctx, id, models.PaymentUpdate{
		Status:      &scheduled,
		PaymentDate: &when,
	}))
}

// ScheduleMassPayment creates and schedules a payout for each listed
// affiliate whose payable balance clears the minimum; an empty id list sweeps
// every active affiliate. A zero minimum falls back to the configured payout
// minimum and an empty method to each affiliate's own. Affiliates that cannot
// be paid are skipped, not fatal.
func (s *PaymentService) ScheduleMassPayment(ctx context.Context, req models.MassPayoutRequest, when time.Time) ([]*models.Payment, error) {
	var affiliates []*models.Affiliate
	if len(req.AffiliateIDs) > 0 {
		for _, affiliateID := range req.AffiliateIDs {
			affiliate, err := s.affiliates.Get(ctx, affiliateID)
			if err != nil {
				log.Printf("WARNING: affiliate %s skipped in mass payout: %v", affiliateID.Hex(), err)
				continue
			}
			affiliates = append(affiliates, affiliate)
		}
	} else {
		var err error
		affiliates, err = s.affiliates.List(ctx, models.AffiliateFilter{Status: models.AffiliateStatusActive})
		if err != nil {
			return nil, err
		}
	}

	minimum := req.MinimumAmount
	if minimum <= 0 {
		minimum = s.settings.MinimumPayout
	}

	var scheduled []*models.Payment
	for _, affiliate := range affiliates {
		if !affiliate.IsActive() {
			continue
		}
		payable, err := s.commissions.commissions.SumAmount(ctx, models.CommissionFilter{
			AffiliateID: &affiliate.ID,
			Statuses:    []string{models.CommissionStatusApproved},
			Unassigned:  true,
		})
		if err != nil {
			log.Printf("WARNING: failed to sum payable commissions for affiliate %s: %v", affiliate.ID.Hex(), err)
			continue
		}
		if payable < minimum {
			continue
		}

		payment, err := s.createPayout(ctx, affiliate, moneyFloat(decimal.NewFromFloat(payable)), req.Method)
		if err != nil {
			log.Printf("WARNING: failed to create mass payout for affiliate %s: %v", affiliate.ID.Hex(), err)
			continue
		}
		if err := s.SchedulePayment(ctx, payment.ID, when); err != nil {
			log.Printf("WARNING: failed to schedule payment %s: %v", payment.ID.Hex(), err)
			continue
		}
		payment.Status = models.PaymentStatusScheduled
		payment.PaymentDate = &when
		scheduled = append(scheduled, payment)
	}
	return scheduled, nil
}

// ProcessScheduledPayments executes every scheduled payment that has come
// due, up to the batch cap. Meant to run from a periodic job.
func (s *PaymentService) ProcessScheduledPayments(ctx context.Context) (*models.BulkProcessResult, error) {
	now := s.now()
	due, err := s.payments.List(ctx, models.PaymentFilter{
		Status:            models.PaymentStatusScheduled,
		PaymentDateBefore: &now,
		Limit:             scheduledBatchSize,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, len(due))
	for i, payment := range due {
		ids[i] = payment.ID
	}
	return s.BulkProcess(ctx, ids, ""), nil
}

// DeletePayment removes a payment and returns its commissions to the payable
// pool. Completed payments are immutable history and cannot be deleted.
func (s *PaymentService) DeletePayment(ctx context.Context, id primitive.ObjectID) error {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentStatusCompleted {
		return ErrCannotDeleteCompleted
	}

	if err := s.commissions.commissions.Release(ctx, id); err != nil {
		return fmt.Errorf("failed to release commissions: %w", err)
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}

	s.affiliates.refreshStats(ctx, payment.AffiliateID)
	return nil
}

func (s *PaymentService) Get(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	return payment, mapStoreError(err)
}

func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	return s.payments.List(ctx, filter)
}

func (s *PaymentService) Count(ctx context.Context, filter models.PaymentFilter) (int64, error) {
	return s.payments.Count(ctx, filter)
}

// Summary aggregates settlement totals over an optional date window
func (s *PaymentService) Summary(ctx context.Context, window models.StatsRange) (*models.PaymentSummary, error) {
	completed, err := s.payments.SumByStatus(ctx, models.PaymentStatusCompleted, window)
	if err != nil {
		return nil, err
	}
	pending, err := s.payments.SumByStatus(ctx, models.PaymentStatusPending, window)
	if err != nil {
		return nil, err
	}
	scheduled, err := s.payments.SumByStatus(ctx, models.PaymentStatusScheduled, window)
	if err != nil {
		return nil, err
	}
	failed, err := s.payments.SumByStatus(ctx, models.PaymentStatusFailed, window)
	if err != nil {
		return nil, err
	}
	count, err := s.payments.Count(ctx, models.PaymentFilter{StartDate: window.StartDate, EndDate: window.EndDate})
	if err != nil {
		return nil, err
	}

	return &models.PaymentSummary{
		TotalCompleted: moneyFloat(decimal.NewFromFloat(completed)),
		TotalPending:   moneyFloat(decimal.NewFromFloat(pending).Add(decimal.NewFromFloat(scheduled))),
		TotalFailed:    moneyFloat(decimal.NewFromFloat(failed)),
		PaymentCount:   count,
	}, nil
}

// Invoice assembles a payment with its affiliate and settled commissions
func (s *PaymentService) Invoice(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	affiliate, err := s.affiliates.Get(ctx, payment.AffiliateID)
	if err != nil {
		return nil, err
	}

	commissions := make([]*models.Commission, 0, len(payment.CommissionIDs))
	for _, commissionID := range payment.CommissionIDs {
		commission, err := s.commissions.Get(ctx, commissionID)
		if err != nil {
			log.Printf("WARNING: commission %s on payment %s could not be loaded: %v", commissionID.Hex(), id.Hex(), err)
			continue
		}
		commissions = append(commissions, commission)
	}

	return &models.Invoice{
		Payment:     payment,
		Affiliate:   affiliate,
		Commissions: commissions,
		GeneratedAt: s.now(),
	}, nil
}
