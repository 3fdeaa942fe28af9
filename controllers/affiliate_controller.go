package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/services"
)

// AffiliateController exposes affiliate lifecycle and link management
type AffiliateController struct {
	affiliates *services.AffiliateService
	links      *services.LinkService
}

func NewAffiliateController(affiliates *services.AffiliateService, links *services.LinkService) *AffiliateController {
	return &AffiliateController{affiliates: affiliates, links: links}
}

func (ac *AffiliateController) Create(c echo.Context) error {
	var req models.CreateAffiliateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	affiliate, err := ac.affiliates.Create(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Affiliate created",
		Data:    affiliate,
	})
}

func (ac *AffiliateController) Get(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid affiliate id")
	}

	affiliate, err := ac.affiliates.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate found",
		Data:    affiliate,
	})
}

func (ac *AffiliateController) GetByUser(c echo.Context) error {
	affiliate, err := ac.affiliates.GetByUser(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate found",
		Data:    affiliate,
	})
}

func (ac *AffiliateController) List(c echo.Context) error {
	filter := models.AffiliateFilter{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
		Limit:  queryInt64(c, "limit"),
		Offset: queryInt64(c, "offset"),
	}

	affiliates, err := ac.affiliates.List(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := ac.affiliates.Count(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliates retrieved",
		Data: map[string]interface{}{
			"affiliates": affiliates,
			"total":      total,
		},
	})
}

func (ac *AffiliateController) Approve(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid affiliate id")
	}

	if err := ac.affiliates.Approve(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate approved",
	})
}

func (ac *AffiliateController) Reject(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid affiliate id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := ac.affiliates.Reject(c.Request().Context(), id, body.Reason); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate rejected",
	})
}

func (ac *AffiliateController) Delete(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid affiliate id")
	}

	if err := ac.affiliates.Delete(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate deleted",
	})
}

// Stats returns the derived totals, optionally scoped to a date window
func (ac *AffiliateController) Stats(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid affiliate id")
	}

	stats, err := ac.affiliates.ComputeStats(c.Request().Context(), id, statsRange(c))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Stats computed",
		Data:    stats,
	})
}

func (ac *AffiliateController) GenerateLink(c echo.Context) error {
	var req models.GenerateLinkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	link, err := ac.links.GenerateLink(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Link generated",
		Data:    link,
	})
}

func (ac *AffiliateController) ListLinks(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid affiliate id")
	}

	links, err := ac.links.ListLinks(c.Request().Context(), id, c.QueryParam("status"), queryInt64(c, "limit"), queryInt64(c, "offset"))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Links retrieved",
		Data:    links,
	})
}

func (ac *AffiliateController) LinkStats(c echo.Context) error {
	linkID, err := paramObjectID(c, "linkId")
	if err != nil {
		return badRequest(c, "Invalid link id")
	}

	stats, err := ac.links.LinkStats(c.Request().Context(), linkID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Link stats computed",
		Data:    stats,
	})
}
