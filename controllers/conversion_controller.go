package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/services"
	"github.com/refstack/affiliate-backend/utils"
)

// ConversionController receives the order-completion webhook and turns it
// into a commission for the attributed affiliate.
type ConversionController struct {
	links       *services.LinkService
	commissions *services.CommissionService
	settings    *config.Settings
}

func NewConversionController(links *services.LinkService, commissions *services.CommissionService, settings *config.Settings) *ConversionController {
	return &ConversionController{links: links, commissions: commissions, settings: settings}
}

// HandleConversion attributes the order and records the commission. The
// endpoint always answers 2xx for "nothing to do" cases so the shop does not
// keep retrying a webhook that can never succeed.
func (cc *ConversionController) HandleConversion(c echo.Context) error {
	var req models.ConversionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	var cookieAffiliateID *primitive.ObjectID
	if id, ok := utils.ReadAttributionCookie(c, cc.settings.CookieSecret); ok {
		cookieAffiliateID = &id
	}

	ip := utils.ClientIP(c.Request())
	attribution, err := cc.links.ResolveAttribution(c.Request().Context(), cookieAffiliateID, ip, req.AttributionMethod)
	if err != nil {
		if errors.Is(err, services.ErrNoAttributionAvailable) {
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "No affiliate attribution for this order",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to resolve attribution",
		})
	}

	commissionReq := models.CreateCommissionRequest{
		AffiliateID: attribution.AffiliateID,
		OrderID:     req.OrderID,
		OrderTotal:  req.OrderTotal,
		Currency:    req.Currency,
		Reference:   req.Reference,
	}
	if !attribution.VisitID.IsZero() {
		visitID := attribution.VisitID
		commissionReq.VisitID = &visitID
	}

	commission, err := cc.commissions.CreateCommission(c.Request().Context(), commissionReq)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommissionExists):
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Order already commissioned",
			})
		case errors.Is(err, services.ErrInactiveAffiliate):
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Attributed affiliate is not active",
			})
		default:
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create commission",
			})
		}
	}

	if err := cc.links.AttributeConversion(c.Request().Context(), attribution, req.OrderID); err != nil {
		// the commission exists, attribution bookkeeping is best effort
		c.Logger().Warnf("failed to attribute conversion for order %s: %v", req.OrderID, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Commission created",
		Data:    commission,
	})
}
