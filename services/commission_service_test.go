package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/models"
)

func TestCalculateCommissionPercentage(t *testing.T) {
	env := newTestEnv()
	affiliate := &models.Affiliate{CommissionRate: 10}

	amount := env.commissions.CalculateCommission(affiliate, 250, 10, models.CommissionTypePercentage)
	assert.Equal(t, 25.0, amount)

	// rounds half up at the fourth decimal place
	amount = env.commissions.CalculateCommission(affiliate, 33.333, 15, models.CommissionTypePercentage)
	assert.Equal(t, 5.0, amount)
}

func TestCalculateCommissionFixed(t *testing.T) {
	env := newTestEnv()
	affiliate := &models.Affiliate{}

	amount := env.commissions.CalculateCommission(affiliate, 999, 7.5, models.CommissionTypeFixed)
	assert.Equal(t, 7.5, amount)
}

func TestCalculateCommissionTieredFirstMatchWins(t *testing.T) {
	env := newTestEnv()
	hundred := 100.0
	affiliate := &models.Affiliate{
		TierRates: []models.TierRate{
			{MinSales: 0, MaxSales: &hundred, Rate: 5},
			{MinSales: 100, Rate: 8},
		},
	}

	affiliate.TotalEarnings = 50
	assert.Equal(t, 10.0, env.commissions.CalculateCommission(affiliate, 200, 10, models.CommissionTypeTiered))

	affiliate.TotalEarnings = 150
	assert.Equal(t, 16.0, env.commissions.CalculateCommission(affiliate, 200, 10, models.CommissionTypeTiered))
}

func TestCalculateCommissionTieredNoMatchYieldsZero(t *testing.T) {
	env := newTestEnv()
	affiliate := &models.Affiliate{
		TierRates: []models.TierRate{
			{MinSales: 1000, Rate: 20},
		},
	}
	affiliate.TotalEarnings = 10

	// below every bracket, nothing is owed
	assert.Equal(t, 0.0, env.commissions.CalculateCommission(affiliate, 100, 10, models.CommissionTypeTiered))
}

func TestCreateCommissionComputesAmount(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")

	commission, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  250,
	})
	require.NoError(t, err)

	assert.Equal(t, 25.0, commission.CommissionAmount)
	assert.Equal(t, models.CommissionStatusPending, commission.Status)
	assert.Equal(t, models.CommissionKindSale, commission.Kind)
	assert.Equal(t, 1, commission.Level)
	assert.Equal(t, "USD", commission.Currency)
	assert.True(t, env.sink.has(EventCommissionCreated))
}

func TestCreateCommissionIdempotentPerOrder(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")

	req := models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  100,
	}
	_, err := env.commissions.CreateCommission(context.Background(), req)
	require.NoError(t, err)

	_, err = env.commissions.CreateCommission(context.Background(), req)
	assert.ErrorIs(t, err, ErrCommissionExists)

	count, err := env.commissionRepo.Count(context.Background(), models.CommissionFilter{AffiliateID: &affiliate.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateCommissionInactiveAffiliate(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")
	require.NoError(t, env.affiliateRepo.UpdateStatus(context.Background(), affiliate.ID, models.AffiliateStatusPending, nil, ""))

	_, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  100,
	})
	assert.ErrorIs(t, err, ErrInactiveAffiliate)
}

func TestCreateCommissionRefreshesStats(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")

	_, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  250,
	})
	require.NoError(t, err)

	stored, err := env.affiliateRepo.GetByID(context.Background(), affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, stored.TotalEarnings)
	assert.Equal(t, 25.0, stored.TotalUnpaid)
	assert.Equal(t, 0.0, stored.TotalPaid)
	assert.Equal(t, int64(1), stored.TotalReferrals)
}

func TestMultiLevelCascade(t *testing.T) {
	env := newTestEnv()
	env.settings.EnableMultiLevel = true

	grandparent := env.newActiveAffiliate("user-gp", "grandparent")
	parent := env.newActiveAffiliate("user-p", "parent")
	child := env.newActiveAffiliate("user-c", "child")

	env.affiliateRepo.affiliates[parent.ID].ParentAffiliateID = &grandparent.ID
	env.affiliateRepo.affiliates[child.ID].ParentAffiliateID = &parent.ID

	origin, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: child.ID,
		OrderID:     "order-1",
		OrderTotal:  1000,
	})
	require.NoError(t, err)

	parentRows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, parentRows, 1)
	assert.Equal(t, models.CommissionKindMultiLevel, parentRows[0].Kind)
	assert.Equal(t, 2, parentRows[0].Level)
	assert.Equal(t, 50.0, parentRows[0].CommissionAmount) // 5% of 1000
	require.NotNil(t, parentRows[0].ParentCommissionID)
	assert.Equal(t, origin.ID, *parentRows[0].ParentCommissionID)

	gpRows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &grandparent.ID})
	require.NoError(t, err)
	require.Len(t, gpRows, 1)
	assert.Equal(t, 3, gpRows[0].Level)
	assert.Equal(t, 20.0, gpRows[0].CommissionAmount) // 2% of 1000
}

func TestCascadeStopsAtMaxLevels(t *testing.T) {
	env := newTestEnv()
	env.settings.EnableMultiLevel = true
	env.settings.MaxLevels = 2

	grandparent := env.newActiveAffiliate("user-gp", "grandparent")
	parent := env.newActiveAffiliate("user-p", "parent")
	child := env.newActiveAffiliate("user-c", "child")

	env.affiliateRepo.affiliates[parent.ID].ParentAffiliateID = &grandparent.ID
	env.affiliateRepo.affiliates[child.ID].ParentAffiliateID = &parent.ID

	_, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: child.ID,
		OrderID:     "order-1",
		OrderTotal:  1000,
	})
	require.NoError(t, err)

	gpRows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &grandparent.ID})
	require.NoError(t, err)
	assert.Empty(t, gpRows)
}

func TestCascadeStopsAtInactiveAncestor(t *testing.T) {
	env := newTestEnv()
	env.settings.EnableMultiLevel = true

	grandparent := env.newActiveAffiliate("user-gp", "grandparent")
	parent := env.newActiveAffiliate("user-p", "parent")
	child := env.newActiveAffiliate("user-c", "child")

	env.affiliateRepo.affiliates[parent.ID].ParentAffiliateID = &grandparent.ID
	env.affiliateRepo.affiliates[child.ID].ParentAffiliateID = &parent.ID
	require.NoError(t, env.affiliateRepo.UpdateStatus(context.Background(), parent.ID, models.AffiliateStatusPending, nil, ""))

	_, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: child.ID,
		OrderID:     "order-1",
		OrderTotal:  1000,
	})
	require.NoError(t, err)

	// the walk ends at the inactive parent: no commission for it, and none
	// for the active grandparent above it
	parentRows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &parent.ID})
	require.NoError(t, err)
	assert.Empty(t, parentRows)

	gpRows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &grandparent.ID})
	require.NoError(t, err)
	assert.Empty(t, gpRows)
}

func TestCascadeCarriesOriginVisit(t *testing.T) {
	env := newTestEnv()
	env.settings.EnableMultiLevel = true

	parent := env.newActiveAffiliate("user-p", "parent")
	child := env.newActiveAffiliate("user-c", "child")
	env.affiliateRepo.affiliates[child.ID].ParentAffiliateID = &parent.ID

	visit := &models.Visit{AffiliateID: child.ID, IPAddress: "203.0.113.7", DateCreated: time.Now()}
	require.NoError(t, env.visitRepo.Insert(context.Background(), visit))

	origin, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: child.ID,
		OrderID:     "order-1",
		OrderTotal:  1000,
		Reference:   "ref-1",
		VisitID:     &visit.ID,
	})
	require.NoError(t, err)

	rows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// the upline row keeps the origin's order, reference and visit
	assert.Equal(t, origin.OrderID, rows[0].OrderID)
	assert.Equal(t, origin.Reference, rows[0].Reference)
	require.NotNil(t, rows[0].VisitID)
	assert.Equal(t, visit.ID, *rows[0].VisitID)
}

func TestCascadeSurvivesCyclicUpline(t *testing.T) {
	env := newTestEnv()
	env.settings.EnableMultiLevel = true
	env.settings.MaxLevels = 10

	a := env.newActiveAffiliate("user-a", "aaa")
	b := env.newActiveAffiliate("user-b", "bbb")

	// a and b refer each other
	env.affiliateRepo.affiliates[a.ID].ParentAffiliateID = &b.ID
	env.affiliateRepo.affiliates[b.ID].ParentAffiliateID = &a.ID

	_, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: a.ID,
		OrderID:     "order-1",
		OrderTotal:  100,
	})
	require.NoError(t, err)

	// exactly one upline commission; the walk stops when it sees a again
	rows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{
		AffiliateID: &b.ID,
		Kind:        models.CommissionKindMultiLevel,
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCascadeDisabledByDefault(t *testing.T) {
	env := newTestEnv()

	parent := env.newActiveAffiliate("user-p", "parent")
	child := env.newActiveAffiliate("user-c", "child")
	env.affiliateRepo.affiliates[child.ID].ParentAffiliateID = &parent.ID

	_, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: child.ID,
		OrderID:     "order-1",
		OrderTotal:  1000,
	})
	require.NoError(t, err)

	rows, err := env.commissionRepo.List(context.Background(), models.CommissionFilter{AffiliateID: &parent.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCommissionLifecycle(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")

	commission, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  250,
	})
	require.NoError(t, err)

	require.NoError(t, env.commissions.Approve(context.Background(), commission.ID))
	stored, err := env.commissions.Get(context.Background(), commission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusApproved, stored.Status)
	assert.True(t, env.sink.has(EventCommissionApproved))

	paymentID := env.newActiveAffiliate("user-2", "bob").ID // any object id
	require.NoError(t, env.commissions.MarkPaid(context.Background(), commission.ID, paymentID))
	stored, err = env.commissions.Get(context.Background(), commission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPaid, stored.Status)
	require.NotNil(t, stored.DatePaid)
	require.NotNil(t, stored.PaymentID)

	// the projection keeps earnings = paid + unpaid
	refreshed, err := env.affiliateRepo.GetByID(context.Background(), affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, refreshed.TotalEarnings)
	assert.Equal(t, 25.0, refreshed.TotalPaid)
	assert.Equal(t, 0.0, refreshed.TotalUnpaid)
}

func TestCommissionUpdateRecomputesStats(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")

	commission, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  250,
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, commission.CommissionAmount)

	amount := 12.34567
	description := "manual adjustment"
	updated, err := env.commissions.Update(context.Background(), commission.ID, models.UpdateCommissionRequest{
		CommissionAmount: &amount,
		Description:      &description,
	})
	require.NoError(t, err)
	assert.Equal(t, 12.3457, updated.CommissionAmount)
	assert.Equal(t, "manual adjustment", updated.Description)
	assert.Equal(t, models.CommissionStatusPending, updated.Status)

	refreshed, err := env.affiliateRepo.GetByID(context.Background(), affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.3457, refreshed.TotalEarnings)
}

func TestCommissionUpdateNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.commissions.Update(context.Background(), primitive.NewObjectID(), models.UpdateCommissionRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommissionRejectKeepsReason(t *testing.T) {
	env := newTestEnv()
	affiliate := env.newActiveAffiliate("user-1", "alice")

	commission, err := env.commissions.CreateCommission(context.Background(), models.CreateCommissionRequest{
		AffiliateID: affiliate.ID,
		OrderID:     "order-1",
		OrderTotal:  250,
	})
	require.NoError(t, err)

	require.NoError(t, env.commissions.Reject(context.Background(), commission.ID, "returned order"))

	stored, err := env.commissions.Get(context.Background(), commission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusRejected, stored.Status)
	assert.Equal(t, "returned order", stored.Meta["rejection_reason"])

	// rejected commissions drop out of the earnings projection
	refreshed, err := env.affiliateRepo.GetByID(context.Background(), affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, refreshed.TotalEarnings)
}
