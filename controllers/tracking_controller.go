package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/services"
	"github.com/refstack/affiliate-backend/utils"
)

// TrackingController handles the public click endpoints. Handlers stay thin:
// every decision about suppression, fraud and attribution lives in the
// services.
type TrackingController struct {
	links      *services.LinkService
	affiliates *services.AffiliateService
	settings   *config.Settings
}

func NewTrackingController(links *services.LinkService, affiliates *services.AffiliateService, settings *config.Settings) *TrackingController {
	return &TrackingController{links: links, affiliates: affiliates, settings: settings}
}

// HandleClick records a referred visit and redirects to the destination.
// Unknown or inactive referral codes fall through to the home page so a stale
// link never breaks for the visitor.
func (tc *TrackingController) HandleClick(c echo.Context) error {
	code := c.Param("code")

	affiliate, err := tc.affiliates.GetByReferralCode(c.Request().Context(), code)
	if err != nil || !affiliate.IsActive() {
		return c.Redirect(http.StatusFound, tc.settings.SiteURL)
	}

	destination := c.QueryParam("to")
	if destination == "" {
		destination = tc.settings.SiteURL
	}

	req := models.RecordVisitRequest{
		AffiliateID:   affiliate.ID,
		IPAddress:     utils.ClientIP(c.Request()),
		UserAgent:     c.Request().UserAgent(),
		Referrer:      c.Request().Referer(),
		LandingPage:   destination,
		Campaign:      c.QueryParam("campaign"),
		Authenticated: c.Request().Header.Get("Authorization") != "",
	}
	if linkHex := c.QueryParam("link"); linkHex != "" {
		if linkID, err := primitive.ObjectIDFromHex(linkHex); err == nil {
			req.LinkID = &linkID
		}
	}

	if _, err := tc.links.RecordVisit(c.Request().Context(), req); err != nil {
		if !errors.Is(err, services.ErrVisitSuppressed) {
			log.Printf("WARNING: failed to record visit for affiliate %s: %v", affiliate.ID.Hex(), err)
		}
		// suppressed clicks still refresh attribution below
	}

	if tc.links.IsFraud(c.Request().Context(), affiliate.ID, req.IPAddress) {
		return c.Redirect(http.StatusFound, tc.settings.SiteURL)
	}

	if err := utils.SetAttributionCookie(c, affiliate.ID, tc.settings.CookieSecret, tc.settings.CookieDuration); err != nil {
		log.Printf("WARNING: failed to set attribution cookie: %v", err)
	}

	return c.Redirect(http.StatusFound, destination)
}

// HandleShortLink expands a short code into its full tracking URL
func (tc *TrackingController) HandleShortLink(c echo.Context) error {
	shortLink, err := tc.links.ResolveShortLink(c.Request().Context(), c.Param("code"))
	if err != nil {
		return c.Redirect(http.StatusFound, tc.settings.SiteURL)
	}
	return c.Redirect(http.StatusFound, shortLink.URL)
}
