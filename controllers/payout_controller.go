package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/services"
)

// PayoutController exposes payout creation, processing and reporting
type PayoutController struct {
	payments *services.PaymentService
}

func NewPayoutController(payments *services.PaymentService) *PayoutController {
	return &PayoutController{payments: payments}
}

func (pc *PayoutController) Request(c echo.Context) error {
	var req models.PayoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	payment, err := pc.payments.RequestPayout(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Payout created",
		Data:    payment,
	})
}

func (pc *PayoutController) Process(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid payment id")
	}

	payment, err := pc.payments.ProcessPayment(c.Request().Context(), id, c.QueryParam("gateway"))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment processed",
		Data:    payment,
	})
}

func (pc *PayoutController) BulkProcess(c echo.Context) error {
	var body struct {
		PaymentIDs []string `json:"paymentIds" validate:"required,min=1"`
		Gateway    string   `json:"gateway" validate:"omitempty,oneof=paypal stripe bank_transfer"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}

	ids := make([]primitive.ObjectID, 0, len(body.PaymentIDs))
	for _, hex := range body.PaymentIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return badRequest(c, "Invalid payment id: "+hex)
		}
		ids = append(ids, id)
	}

	result := pc.payments.BulkProcess(c.Request().Context(), ids, body.Gateway)
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Bulk processing finished",
		Data:    result,
	})
}

func (pc *PayoutController) Schedule(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid payment id")
	}

	var body struct {
		PaymentDate time.Time `json:"paymentDate" validate:"required"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}

	if err := pc.payments.SchedulePayment(c.Request().Context(), id, body.PaymentDate); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment scheduled",
	})
}

func (pc *PayoutController) ScheduleMass(c echo.Context) error {
	var body struct {
		models.MassPayoutRequest
		PaymentDate time.Time `json:"paymentDate" validate:"required"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}

	scheduled, err := pc.payments.ScheduleMassPayment(c.Request().Context(), body.MassPayoutRequest, body.PaymentDate)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Mass payment scheduled",
		Data:    scheduled,
	})
}

// ProcessDue runs every scheduled payment whose date has passed
func (pc *PayoutController) ProcessDue(c echo.Context) error {
	result, err := pc.payments.ProcessScheduledPayments(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Scheduled payments processed",
		Data:    result,
	})
}

func (pc *PayoutController) Get(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid payment id")
	}

	payment, err := pc.payments.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment found",
		Data:    payment,
	})
}

func (pc *PayoutController) List(c echo.Context) error {
	filter := models.PaymentFilter{
		Status:    c.QueryParam("status"),
		Method:    c.QueryParam("method"),
		StartDate: queryTime(c, "startDate"),
		EndDate:   queryTime(c, "endDate"),
		Limit:     queryInt64(c, "limit"),
		Offset:    queryInt64(c, "offset"),
	}
	if affiliateHex := c.QueryParam("affiliateId"); affiliateHex != "" {
		affiliateID, err := paramHexQuery(affiliateHex)
		if err != nil {
			return badRequest(c, "Invalid affiliate id")
		}
		filter.AffiliateID = affiliateID
	}

	payments, err := pc.payments.List(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	total, err := pc.payments.Count(c.Request().Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payments retrieved",
		Data: map[string]interface{}{
			"payments": payments,
			"total":    total,
		},
	})
}

func (pc *PayoutController) Delete(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid payment id")
	}

	if err := pc.payments.DeletePayment(c.Request().Context(), id); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment deleted",
	})
}

func (pc *PayoutController) Summary(c echo.Context) error {
	summary, err := pc.payments.Summary(c.Request().Context(), statsRange(c))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment summary computed",
		Data:    summary,
	})
}

func (pc *PayoutController) Invoice(c echo.Context) error {
	id, err := paramObjectID(c, "id")
	if err != nil {
		return badRequest(c, "Invalid payment id")
	}

	invoice, err := pc.payments.Invoice(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Invoice generated",
		Data:    invoice,
	})
}
