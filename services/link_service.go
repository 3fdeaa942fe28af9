package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/repositories"
	"github.com/refstack/affiliate-backend/utils"
)

// fraudVisitThreshold is the number of visits per (affiliate, ip) inside the
// fraud window after which further clicks are flagged
const (
	fraudVisitThreshold = 10
	fraudWindow         = time.Hour
)

// LinkService owns tracked links, click recording with its suppression rules,
// fraud detection and conversion attribution.
type LinkService struct {
	links       repositories.LinkRepository
	shortLinks  repositories.ShortLinkRepository
	visits      repositories.VisitRepository
	commissions repositories.CommissionRepository
	affiliates  *AffiliateService
	settings    *config.Settings
	events      EventSink
	redis       *redis.Client // nil degrades fraud counters to store queries
	now         func() time.Time
}

func NewLinkService(
	links repositories.LinkRepository,
	shortLinks repositories.ShortLinkRepository,
	visits repositories.VisitRepository,
	commissions repositories.CommissionRepository,
	affiliates *AffiliateService,
	settings *config.Settings,
	events EventSink,
	redisClient *redis.Client,
) *LinkService {
	return &LinkService{
		links:       links,
		shortLinks:  shortLinks,
		visits:      visits,
		commissions: commissions,
		affiliates:  affiliates,
		settings:    settings,
		events:      events,
		redis:       redisClient,
		now:         time.Now,
	}
}

// GenerateLink creates a tracked link for an affiliate: the full tracking URL
// through the click endpoint, a short code and a QR code for the short URL.
func (s *LinkService) GenerateLink(ctx context.Context, req models.GenerateLinkRequest) (*models.GeneratedLink, error) {
	affiliate, err := s.affiliates.Get(ctx, req.AffiliateID)
	if err != nil {
		return nil, err
	}
	if !affiliate.IsActive() {
		return nil, ErrInactiveAffiliate
	}

	link := &models.AffiliateLink{
		AffiliateID: affiliate.ID,
		URL:         req.URL,
		Campaign:    req.Campaign,
		CreativeID:  req.CreativeID,
		Status:      "active",
		DateCreated: s.now(),
	}
	if err := s.links.Insert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	trackingURL := s.trackingURL(affiliate.ReferralCode, link, req)

	code, err := s.allocateShortCode(ctx, trackingURL, req.CustomSlug)
	if err != nil {
		return nil, err
	}
	shortLink := &models.ShortLink{
		Code:        code,
		URL:         trackingURL,
		AffiliateID: affiliate.ID,
		DateCreated: s.now(),
	}
	if err := s.shortLinks.Insert(ctx, shortLink); err != nil {
		return nil, fmt.Errorf("failed to create short link: %w", err)
	}

	shortURL := s.settings.SiteURL + "/go/" + code

	qrCode, err := utils.QRCodeDataURI(shortURL)
	if err != nil {
		// the link still works without its QR code
		log.Printf("WARNING: failed to generate QR code for link %s: %v", link.ID.Hex(), err)
	}

	s.events.Emit(EventLinkGenerated, EventPayload{
		"linkId":      link.ID.Hex(),
		"affiliateId": affiliate.ID.Hex(),
		"url":         trackingURL,
		"shortUrl":    shortURL,
	})

	return &models.GeneratedLink{
		LinkID:   link.ID,
		URL:      trackingURL,
		ShortURL: shortURL,
		QRCode:   qrCode,
	}, nil
}

func (s *LinkService) trackingURL(referralCode string, link *models.AffiliateLink, req models.GenerateLinkRequest) string {
	params := url.Values{}
	params.Set("to", req.URL)
	params.Set("link", link.ID.Hex())
	if req.Campaign != "" {
		params.Set("campaign", req.Campaign)
	}
	if req.CreativeID != "" {
		params.Set("creative", req.CreativeID)
	}
	return fmt.Sprintf("%s/affiliate/%s?%s", s.settings.SiteURL, referralCode, params.Encode())
}

func (s *LinkService) allocateShortCode(ctx context.Context, trackingURL, customSlug string) (string, error) {
	if customSlug != "" {
		code := utils.Slugify(customSlug)
		exists, err := s.shortLinks.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		// taken slug falls through to a generated code
	}

	for attempt := 0; attempt < 5; attempt++ {
		code := utils.ShortCode(trackingURL, s.now())
		exists, err := s.shortLinks.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique short code")
}

// RecordVisit stores a qualifying click. Bots, logged-in users when tracking
// them is off, and repeat clicks from the same (affiliate, ip, day) are
// suppressed and yield ErrVisitSuppressed.
func (s *LinkService) RecordVisit(ctx context.Context, req models.RecordVisitRequest) (*models.Visit, error) {
	if utils.IsBot(req.UserAgent) {
		return nil, ErrVisitSuppressed
	}
	if req.Authenticated && !s.settings.TrackLoggedInUsers {
		return nil, ErrVisitSuppressed
	}

	now := s.now()
	dupes, err := s.visits.CountSameDay(ctx, req.AffiliateID, req.IPAddress, now)
	if err != nil {
		return nil, err
	}
	if dupes > 0 {
		s.bumpFraudCounter(ctx, req.AffiliateID, req.IPAddress)
		return nil, ErrVisitSuppressed
	}

	visit := &models.Visit{
		AffiliateID: req.AffiliateID,
		LinkID:      req.LinkID,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Referrer:    req.Referrer,
		LandingPage: req.LandingPage,
		Campaign:    req.Campaign,
		DateCreated: now,
	}
	if err := s.visits.Insert(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	if req.LinkID != nil {
		if err := s.links.IncrementClicks(ctx, *req.LinkID); err != nil {
			log.Printf("WARNING: failed to increment clicks for link %s: %v", req.LinkID.Hex(), err)
		}
	}

	s.bumpFraudCounter(ctx, req.AffiliateID, req.IPAddress)

	s.events.Emit(EventVisitTracked, EventPayload{
		"visitId":     visit.ID.Hex(),
		"affiliateId": req.AffiliateID.Hex(),
		"ipAddress":   req.IPAddress,
	})

	return visit, nil
}

func fraudKey(affiliateID primitive.ObjectID, ip string) string {
	return fmt.Sprintf("fraud:%s:%s", affiliateID.Hex(), ip)
}

// bumpFraudCounter increments the per-(affiliate, ip) click counter in Redis.
// The key expires after the fraud window, giving a trailing-window counter
// without any cleanup job.
func (s *LinkService) bumpFraudCounter(ctx context.Context, affiliateID primitive.ObjectID, ip string) {
	if s.redis == nil {
		return
	}

	key := fraudKey(affiliateID, ip)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("WARNING: failed to bump fraud counter %s: %v", key, err)
		return
	}
	if count == 1 {
		s.redis.Expire(ctx, key, fraudWindow)
	}
}

// IsFraud reports whether the (affiliate, ip) pair exceeded the click
// threshold inside the trailing window. Redis answers when available,
// otherwise the visit store is counted directly.
func (s *LinkService) IsFraud(ctx context.Context, affiliateID primitive.ObjectID, ip string) bool {
	if s.redis != nil {
		count, err := s.redis.Get(ctx, fraudKey(affiliateID, ip)).Int64()
		if err == nil {
			if count > fraudVisitThreshold {
				s.flagFraud(affiliateID, ip, count)
				return true
			}
			return false
		}
		if err != redis.Nil {
			log.Printf("WARNING: fraud counter lookup failed, falling back to store: %v", err)
		}
	}

	since := s.now().Add(-fraudWindow)
	count, err := s.visits.CountSince(ctx, affiliateID, ip, since)
	if err != nil {
		log.Printf("WARNING: fraud visit count failed: %v", err)
		return false
	}
	if count > fraudVisitThreshold {
		s.flagFraud(affiliateID, ip, count)
		return true
	}
	return false
}

func (s *LinkService) flagFraud(affiliateID primitive.ObjectID, ip string, count int64) {
	log.Printf("WARNING: fraud suspected for affiliate %s from %s: %d visits in the last hour", affiliateID.Hex(), ip, count)
	s.events.Emit(EventFraudDetected, EventPayload{
		"affiliateId": affiliateID.Hex(),
		"ipAddress":   ip,
		"visitCount":  count,
	})
}

// ResolveAttribution decides which affiliate is credited for a conversion
// from this client under the given method; an empty method uses the
// configured one. Last-click trusts the signed cookie; first-click trusts
// the earliest visit recorded from the client address.
func (s *LinkService) ResolveAttribution(ctx context.Context, cookieAffiliateID *primitive.ObjectID, ip, method string) (*models.ConversionAttribution, error) {
	if method == "" {
		method = s.settings.AttributionMethod
	}
	if method == config.AttributionFirstClick {
		visit, err := s.visits.FirstByIP(ctx, ip)
		if err == nil {
			return &models.ConversionAttribution{
				AffiliateID: visit.AffiliateID,
				VisitID:     visit.ID,
				LinkID:      visit.LinkID,
			}, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		// no recorded first visit, fall back to the cookie
	}

	if cookieAffiliateID == nil {
		return nil, ErrNoAttributionAvailable
	}

	attribution := &models.ConversionAttribution{AffiliateID: *cookieAffiliateID}

	visit, err := s.visits.LatestUnconverted(ctx, *cookieAffiliateID, ip)
	if err == nil {
		attribution.VisitID = visit.ID
		attribution.LinkID = visit.LinkID
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	// a valid cookie without a matching visit still earns the commission

	return attribution, nil
}

// AttributeConversion marks the attributed visit converted and rolls the
// conversion into the link counters
func (s *LinkService) AttributeConversion(ctx context.Context, attribution *models.ConversionAttribution, orderID string) error {
	if !attribution.VisitID.IsZero() {
		if err := s.visits.MarkConverted(ctx, attribution.VisitID, orderID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				// already claimed by another order
				return nil
			}
			return err
		}
	}

	if attribution.LinkID != nil {
		if err := s.links.IncrementConversions(ctx, *attribution.LinkID); err != nil {
			log.Printf("WARNING: failed to increment conversions for link %s: %v", attribution.LinkID.Hex(), err)
		}
	}
	return nil
}

// ResolveShortLink looks up the destination for a short code
func (s *LinkService) ResolveShortLink(ctx context.Context, code string) (*models.ShortLink, error) {
	shortLink, err := s.shortLinks.GetByCode(ctx, code)
	return shortLink, mapStoreError(err)
}

func (s *LinkService) ListLinks(ctx context.Context, affiliateID primitive.ObjectID, status string, limit, offset int64) ([]*models.AffiliateLink, error) {
	return s.links.ListByAffiliate(ctx, affiliateID, status, limit, offset)
}

// LinkStats reports a link's click and conversion counters together with the
// commission earnings of the visits recorded through it
func (s *LinkService) LinkStats(ctx context.Context, linkID primitive.ObjectID) (*models.LinkStats, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	stats := &models.LinkStats{
		Clicks:         link.Clicks,
		Conversions:    link.Conversions,
		ConversionRate: link.ConversionRate,
	}

	visitIDs, err := s.visits.IDsByLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if len(visitIDs) > 0 {
		earnings, err := s.commissions.SumAmount(ctx, models.CommissionFilter{
			AffiliateID: &link.AffiliateID,
			Statuses:    []string{models.CommissionStatusApproved, models.CommissionStatusPaid},
			VisitIDs:    visitIDs,
		})
		if err != nil {
			return nil, err
		}
		stats.Earnings = moneyFloat(decimal.NewFromFloat(earnings))
	}

	return stats, nil
}
