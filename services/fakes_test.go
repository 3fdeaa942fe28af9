package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/repositories"
)

// recordingSink collects emitted events synchronously so tests can assert on
// them without races
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Emit(event string, payload EventPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

func (s *recordingSink) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == event {
			n++
		}
	}
	return n
}

func testSettings() *config.Settings {
	return &config.Settings{
		SiteURL:            "https://shop.example.com",
		Currency:           "USD",
		CommissionRate:     10,
		CommissionType:     models.CommissionTypePercentage,
		MinimumPayout:      50,
		CookieDuration:     30,
		CookieSecret:       "test-secret",
		MaxLevels:          3,
		LevelRates:         map[int]float64{2: 5, 3: 2},
		TrackLoggedInUsers: true,
		AttributionMethod:  config.AttributionLastClick,
	}
}

// fakeAffiliateRepo is an in-memory AffiliateRepository
type fakeAffiliateRepo struct {
	mu         sync.Mutex
	affiliates map[primitive.ObjectID]*models.Affiliate
}

func newFakeAffiliateRepo() *fakeAffiliateRepo {
	return &fakeAffiliateRepo{affiliates: make(map[primitive.ObjectID]*models.Affiliate)}
}

func (r *fakeAffiliateRepo) Insert(ctx context.Context, affiliate *models.Affiliate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.affiliates {
		if existing.UserID == affiliate.UserID || existing.ReferralCode == affiliate.ReferralCode {
			return repositories.ErrDuplicateKey
		}
	}
	affiliate.ID = primitive.NewObjectID()
	clone := *affiliate
	r.affiliates[affiliate.ID] = &clone
	return nil
}

func (r *fakeAffiliateRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	affiliate, ok := r.affiliates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *affiliate
	return &clone, nil
}

func (r *fakeAffiliateRepo) GetByUserID(ctx context.Context, userID string) (*models.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, affiliate := range r.affiliates {
		if affiliate.UserID == userID {
			clone := *affiliate
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAffiliateRepo) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, affiliate := range r.affiliates {
		if affiliate.ReferralCode == code {
			clone := *affiliate
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAffiliateRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, affiliate := range r.affiliates {
		if affiliate.ReferralCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAffiliateRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string, approvedAt *time.Time, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	affiliate, ok := r.affiliates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	affiliate.Status = status
	if approvedAt != nil {
		affiliate.DateApproved = approvedAt
	}
	if notes != "" {
		affiliate.Notes = notes
	}
	return nil
}

func (r *fakeAffiliateRepo) UpdateStats(ctx context.Context, id primitive.ObjectID, stats models.AffiliateStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	affiliate, ok := r.affiliates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	affiliate.TotalEarnings = stats.TotalEarnings
	affiliate.TotalPaid = stats.TotalPaid
	affiliate.TotalUnpaid = stats.TotalUnpaid
	affiliate.TotalReferrals = stats.TotalReferrals
	affiliate.TotalVisits = stats.TotalVisits
	affiliate.ConversionRate = stats.ConversionRate
	return nil
}

func (r *fakeAffiliateRepo) List(ctx context.Context, filter models.AffiliateFilter) ([]*models.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Affiliate
	for _, affiliate := range r.affiliates {
		if filter.Status != "" && affiliate.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(affiliate.ReferralCode, filter.Search) && !strings.Contains(affiliate.UserID, filter.Search) {
			continue
		}
		clone := *affiliate
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateRegistered.Before(result[j].DateRegistered) })
	return result, nil
}

func (r *fakeAffiliateRepo) Count(ctx context.Context, filter models.AffiliateFilter) (int64, error) {
	list, _ := r.List(ctx, filter)
	return int64(len(list)), nil
}

func (r *fakeAffiliateRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.affiliates[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.affiliates, id)
	return nil
}

// fakeCommissionRepo is an in-memory CommissionRepository enforcing the
// (affiliate, order, kind) uniqueness the real index provides
type fakeCommissionRepo struct {
	mu          sync.Mutex
	commissions map[primitive.ObjectID]*models.Commission
}

func newFakeCommissionRepo() *fakeCommissionRepo {
	return &fakeCommissionRepo{commissions: make(map[primitive.ObjectID]*models.Commission)}
}

func (r *fakeCommissionRepo) Insert(ctx context.Context, commission *models.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if commission.OrderID != "" {
		for _, existing := range r.commissions {
			if existing.AffiliateID == commission.AffiliateID && existing.OrderID == commission.OrderID && existing.Kind == commission.Kind {
				return repositories.ErrDuplicateKey
			}
		}
	}
	commission.ID = primitive.NewObjectID()
	clone := *commission
	r.commissions[commission.ID] = &clone
	return nil
}

func (r *fakeCommissionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	commission, ok := r.commissions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *commission
	return &clone, nil
}

func (r *fakeCommissionRepo) Update(ctx context.Context, id primitive.ObjectID, update models.CommissionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	commission, ok := r.commissions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if update.Status != nil {
		commission.Status = *update.Status
	}
	if update.Amount != nil {
		commission.CommissionAmount = *update.Amount
	}
	if update.Description != nil {
		commission.Description = *update.Description
	}
	if update.Reference != nil {
		commission.Reference = *update.Reference
	}
	if update.DatePaid != nil {
		commission.DatePaid = update.DatePaid
	}
	if update.PaymentID != nil {
		commission.PaymentID = update.PaymentID
	}
	if update.Meta != nil {
		commission.Meta = update.Meta
	}
	return nil
}

func (r *fakeCommissionRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commissions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.commissions, id)
	return nil
}

func (r *fakeCommissionRepo) matches(commission *models.Commission, filter models.CommissionFilter) bool {
	if filter.AffiliateID != nil && commission.AffiliateID != *filter.AffiliateID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if commission.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Kind != "" && commission.Kind != filter.Kind {
		return false
	}
	if filter.Unassigned && commission.PaymentID != nil {
		return false
	}
	if len(filter.VisitIDs) > 0 {
		found := false
		for _, visitID := range filter.VisitIDs {
			if commission.VisitID != nil && *commission.VisitID == visitID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.StartDate != nil && commission.DateCreated.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && commission.DateCreated.After(*filter.EndDate) {
		return false
	}
	return true
}

func (r *fakeCommissionRepo) List(ctx context.Context, filter models.CommissionFilter) ([]*models.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Commission
	for _, commission := range r.commissions {
		if r.matches(commission, filter) {
			clone := *commission
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if filter.Ascending {
			return result[i].DateCreated.Before(result[j].DateCreated)
		}
		return result[i].DateCreated.After(result[j].DateCreated)
	})
	if filter.Limit > 0 && int64(len(result)) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *fakeCommissionRepo) Count(ctx context.Context, filter models.CommissionFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, commission := range r.commissions {
		if r.matches(commission, filter) {
			count++
		}
	}
	return count, nil
}

func (r *fakeCommissionRepo) SumAmount(ctx context.Context, filter models.CommissionFilter) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, commission := range r.commissions {
		if r.matches(commission, filter) {
			sum += commission.CommissionAmount
		}
	}
	return sum, nil
}

func (r *fakeCommissionRepo) Reserve(ctx context.Context, ids []primitive.ObjectID, paymentID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reserved int64
	for _, id := range ids {
		commission, ok := r.commissions[id]
		if !ok || commission.Status != models.CommissionStatusApproved || commission.PaymentID != nil {
			continue
		}
		pid := paymentID
		commission.PaymentID = &pid
		reserved++
	}
	return reserved, nil
}

func (r *fakeCommissionRepo) Release(ctx context.Context, paymentID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, commission := range r.commissions {
		if commission.PaymentID != nil && *commission.PaymentID == paymentID {
			commission.PaymentID = nil
			commission.DatePaid = nil
			commission.Status = models.CommissionStatusApproved
		}
	}
	return nil
}

// fakeVisitRepo is an in-memory VisitRepository
type fakeVisitRepo struct {
	mu     sync.Mutex
	visits map[primitive.ObjectID]*models.Visit
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: make(map[primitive.ObjectID]*models.Visit)}
}

func (r *fakeVisitRepo) Insert(ctx context.Context, visit *models.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	visit.ID = primitive.NewObjectID()
	clone := *visit
	r.visits[visit.ID] = &clone
	return nil
}

func (r *fakeVisitRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	visit, ok := r.visits[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *visit
	return &clone, nil
}

func (r *fakeVisitRepo) CountSameDay(ctx context.Context, affiliateID primitive.ObjectID, ip string, day time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	var count int64
	for _, visit := range r.visits {
		if visit.AffiliateID == affiliateID && visit.IPAddress == ip &&
			!visit.DateCreated.Before(dayStart) && visit.DateCreated.Before(dayEnd) {
			count++
		}
	}
	return count, nil
}

func (r *fakeVisitRepo) CountSince(ctx context.Context, affiliateID primitive.ObjectID, ip string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, visit := range r.visits {
		if visit.AffiliateID == affiliateID && visit.IPAddress == ip && visit.DateCreated.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeVisitRepo) FirstByIP(ctx context.Context, ip string) (*models.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first *models.Visit
	for _, visit := range r.visits {
		if visit.IPAddress != ip {
			continue
		}
		if first == nil || visit.DateCreated.Before(first.DateCreated) {
			first = visit
		}
	}
	if first == nil {
		return nil, repositories.ErrNotFound
	}
	clone := *first
	return &clone, nil
}

func (r *fakeVisitRepo) LatestUnconverted(ctx context.Context, affiliateID primitive.ObjectID, ip string) (*models.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Visit
	for _, visit := range r.visits {
		if visit.AffiliateID != affiliateID || visit.IPAddress != ip || visit.Converted {
			continue
		}
		if latest == nil || visit.DateCreated.After(latest.DateCreated) {
			latest = visit
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *fakeVisitRepo) MarkConverted(ctx context.Context, id primitive.ObjectID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	visit, ok := r.visits[id]
	if !ok || visit.Converted {
		return repositories.ErrNotFound
	}
	visit.Converted = true
	visit.ConversionID = orderID
	return nil
}

func (r *fakeVisitRepo) CountByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, window models.StatsRange) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, visit := range r.visits {
		if visit.AffiliateID == affiliateID && inWindow(visit.DateCreated, window) {
			count++
		}
	}
	return count, nil
}

func (r *fakeVisitRepo) CountConverted(ctx context.Context, affiliateID primitive.ObjectID, window models.StatsRange) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, visit := range r.visits {
		if visit.AffiliateID == affiliateID && visit.Converted && inWindow(visit.DateCreated, window) {
			count++
		}
	}
	return count, nil
}

func (r *fakeVisitRepo) IDsByLink(ctx context.Context, linkID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []primitive.ObjectID
	for _, visit := range r.visits {
		if visit.LinkID != nil && *visit.LinkID == linkID {
			ids = append(ids, visit.ID)
		}
	}
	return ids, nil
}

func inWindow(t time.Time, window models.StatsRange) bool {
	if window.StartDate != nil && t.Before(*window.StartDate) {
		return false
	}
	if window.EndDate != nil && t.After(*window.EndDate) {
		return false
	}
	return true
}

// fakeLinkRepo is an in-memory LinkRepository
type fakeLinkRepo struct {
	mu    sync.Mutex
	links map[primitive.ObjectID]*models.AffiliateLink
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[primitive.ObjectID]*models.AffiliateLink)}
}

func (r *fakeLinkRepo) Insert(ctx context.Context, link *models.AffiliateLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link.ID = primitive.NewObjectID()
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *fakeLinkRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AffiliateLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *link
	return &clone, nil
}

func (r *fakeLinkRepo) ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, status string, limit, offset int64) ([]*models.AffiliateLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.AffiliateLink
	for _, link := range r.links {
		if link.AffiliateID != affiliateID {
			continue
		}
		if status != "" && link.Status != status {
			continue
		}
		clone := *link
		result = append(result, &clone)
	}
	return result, nil
}

func (r *fakeLinkRepo) IncrementClicks(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[id]
	if !ok {
		return repositories.ErrNotFound
	}
	link.Clicks++
	return nil
}

func (r *fakeLinkRepo) IncrementConversions(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[id]
	if !ok {
		return repositories.ErrNotFound
	}
	link.Conversions++
	if link.Clicks > 0 {
		link.ConversionRate = float64(link.Conversions) / float64(link.Clicks)
	}
	return nil
}

// fakeShortLinkRepo is an in-memory ShortLinkRepository
type fakeShortLinkRepo struct {
	mu    sync.Mutex
	codes map[string]*models.ShortLink
}

func newFakeShortLinkRepo() *fakeShortLinkRepo {
	return &fakeShortLinkRepo{codes: make(map[string]*models.ShortLink)}
}

func (r *fakeShortLinkRepo) Insert(ctx context.Context, shortLink *models.ShortLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codes[shortLink.Code]; exists {
		return repositories.ErrDuplicateKey
	}
	shortLink.ID = primitive.NewObjectID()
	clone := *shortLink
	r.codes[shortLink.Code] = &clone
	return nil
}

func (r *fakeShortLinkRepo) GetByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	shortLink, ok := r.codes[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *shortLink
	return &clone, nil
}

func (r *fakeShortLinkRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.codes[code]
	return ok, nil
}

// fakePaymentRepo is an in-memory PaymentRepository
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[primitive.ObjectID]*models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[primitive.ObjectID]*models.Payment)}
}

func (r *fakePaymentRepo) Insert(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment.ID = primitive.NewObjectID()
	clone := *payment
	r.payments[payment.ID] = &clone
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *payment
	return &clone, nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, id primitive.ObjectID, update models.PaymentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if update.Status != nil {
		payment.Status = *update.Status
	}
	if update.TransactionID != nil {
		payment.TransactionID = *update.TransactionID
	}
	if update.PaymentDate != nil {
		payment.PaymentDate = update.PaymentDate
	}
	if update.Notes != nil {
		payment.Notes = *update.Notes
	}
	return nil
}

func (r *fakePaymentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.payments, id)
	return nil
}

func (r *fakePaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Payment
	for _, payment := range r.payments {
		if filter.AffiliateID != nil && payment.AffiliateID != *filter.AffiliateID {
			continue
		}
		if filter.Status != "" && payment.Status != filter.Status {
			continue
		}
		if filter.Method != "" && payment.Method != filter.Method {
			continue
		}
		if filter.PaymentDateBefore != nil {
			if payment.PaymentDate == nil || payment.PaymentDate.After(*filter.PaymentDateBefore) {
				continue
			}
		}
		clone := *payment
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateCreated.Before(result[j].DateCreated) })
	if filter.Limit > 0 && int64(len(result)) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *fakePaymentRepo) SumByStatus(ctx context.Context, status string, window models.StatsRange) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, payment := range r.payments {
		if payment.Status == status && inWindow(payment.DateCreated, window) {
			sum += payment.Amount
		}
	}
	return sum, nil
}

func (r *fakePaymentRepo) Count(ctx context.Context, filter models.PaymentFilter) (int64, error) {
	list, _ := r.List(ctx, filter)
	return int64(len(list)), nil
}

// fakeGateway is a scripted PaymentGateway
type fakeGateway struct {
	name   string
	result *models.GatewayResult
	err    error
	calls  int
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Pay(ctx context.Context, payment *models.Payment, affiliate *models.Affiliate) (*models.GatewayResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// testEnv wires every service over the in-memory fakes
type testEnv struct {
	affiliateRepo  *fakeAffiliateRepo
	commissionRepo *fakeCommissionRepo
	visitRepo      *fakeVisitRepo
	linkRepo       *fakeLinkRepo
	shortLinkRepo  *fakeShortLinkRepo
	paymentRepo    *fakePaymentRepo
	sink           *recordingSink
	settings       *config.Settings
	gateways       *GatewayRegistry

	affiliates  *AffiliateService
	commissions *CommissionService
	links       *LinkService
	payments    *PaymentService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		affiliateRepo:  newFakeAffiliateRepo(),
		commissionRepo: newFakeCommissionRepo(),
		visitRepo:      newFakeVisitRepo(),
		linkRepo:       newFakeLinkRepo(),
		shortLinkRepo:  newFakeShortLinkRepo(),
		paymentRepo:    newFakePaymentRepo(),
		sink:           &recordingSink{},
		settings:       testSettings(),
		gateways:       NewGatewayRegistry(),
	}

	env.affiliates = NewAffiliateService(env.affiliateRepo, env.commissionRepo, env.visitRepo, env.settings, env.sink)
	env.commissions = NewCommissionService(env.commissionRepo, env.affiliates, env.settings, env.sink)
	env.links = NewLinkService(env.linkRepo, env.shortLinkRepo, env.visitRepo, env.commissionRepo, env.affiliates, env.settings, env.sink, nil)
	env.payments = NewPaymentService(env.paymentRepo, env.commissions, env.affiliates, env.gateways, env.settings, env.sink)

	return env
}

// newActiveAffiliate inserts an active affiliate directly into the fake store
func (env *testEnv) newActiveAffiliate(userID, code string) *models.Affiliate {
	affiliate := &models.Affiliate{
		PublicID:       userID + "-public",
		UserID:         userID,
		Status:         models.AffiliateStatusActive,
		CommissionRate: env.settings.CommissionRate,
		CommissionType: env.settings.CommissionType,
		PaymentEmail:   userID + "@example.com",
		PaymentMethod:  "paypal",
		ReferralCode:   code,
		DateRegistered: time.Now(),
	}
	if err := env.affiliateRepo.Insert(context.Background(), affiliate); err != nil {
		panic(err)
	}
	return affiliate
}
