// Package controllers holds the HTTP layer. Handlers bind and validate
// requests, call the services and translate service errors into status codes.
package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refstack/affiliate-backend/models"
	"github.com/refstack/affiliate-backend/services"
)

// paramObjectID parses an object id path parameter
func paramObjectID(c echo.Context, name string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(c.Param(name))
}

// paramHexQuery parses an object id passed as a query parameter
func paramHexQuery(hex string) (*primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// queryInt64 parses an integer query parameter, zero when absent or malformed
func queryInt64(c echo.Context, name string) int64 {
	n, _ := strconv.ParseInt(c.QueryParam(name), 10, 64)
	return n
}

// queryTime parses an RFC 3339 or date-only query parameter
func queryTime(c echo.Context, name string) *time.Time {
	value := c.QueryParam(name)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	return nil
}

func statsRange(c echo.Context) models.StatsRange {
	return models.StatsRange{
		StartDate: queryTime(c, "startDate"),
		EndDate:   queryTime(c, "endDate"),
	}
}

// serviceError maps service errors onto the response envelope
func serviceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAffiliateExists),
		errors.Is(err, services.ErrCommissionExists):
		status = http.StatusConflict
	case errors.Is(err, services.ErrMissingUser),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrBelowMinimum),
		errors.Is(err, services.ErrInsufficientUnpaid),
		errors.Is(err, services.ErrNoEligibleCommission),
		errors.Is(err, services.ErrInvalidGateway):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInactiveAffiliate),
		errors.Is(err, services.ErrPaymentNotPending),
		errors.Is(err, services.ErrCannotDeleteCompleted):
		status = http.StatusUnprocessableEntity
	}

	return c.JSON(status, models.Response{
		Status:  status,
		Message: err.Error(),
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: message,
	})
}
