package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/services"
)

// CommissionController exposes the commission ledger and its lifecycle
type CommissionController struct {
	commissions *services.CommissionService
}

func NewCommissionController(commissions *services.CommissionService) *CommissionController {
	return &CommissionController{commissions: commissions}
}

func (cc *CommissionController) Create(c echo.Context) error {
	var req models.CreateCommissionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	commission, err := cc.commissions.CreateCommission(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Commission created",
		Data:    commission,
	})
}

func (cc *CommissionController) Get(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid commission id")
	}

	commission, err := cc.commissions.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission found",
		Data:    commission,
	})
}

func (cc *CommissionController) List(c echo.Context) error {
	filter := models.CommissionFilter{
		Kind:      c.QueryParam("type"),
		Search:    c.QueryParam("search"),
		StartDate: queryTime(c, "startDate"),
		EndDate:   queryTime(c, "endDate"),
		Ascending: c.QueryParam("order") == "asc",
		Limit:     queryInt64(c, "limit"),
		Offset:    queryInt64(c, "offset"),
	}
	if status := c.QueryParam("status"); status != "" {
		filter.Statuses = []string{status}
	}
	if affiliateHex := c.QueryParam("affiliateId"); affiliateHex != "" {
		affiliateID, err := paramHexQuery(affiliateHex)
		if err != nil {
			return badRequest(c, "Invalid affiliate id")
		}
		filter.AffiliateID = affiliateID
	}

	commissions, err := cc.commissions.List(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := cc.commissions.Count(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commissions retrieved",
		Data: map[string]interface{}{
			"commissions": commissions,
			"total":       total,
		},
	})
}

func (cc *CommissionController) Update(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid commission id")
	}

	var req models.UpdateCommissionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	commission, err := cc.commissions.Update(c.Request().Context(), id, req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission updated",
		Data:    commission,
	})
}

func (cc *CommissionController) Approve(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid commission id")
	}

	if err := cc.commissions.Approve(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission approved",
	})
}

func (cc *CommissionController) Reject(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid commission id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := cc.commissions.Reject(c.Request().Context(), id, body.Reason); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission rejected",
	})
}

func (cc *CommissionController) Delete(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid commission id")
	}

	if err := cc.commissions.Delete(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission deleted",
	})
}
