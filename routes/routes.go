package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refstack/affiliate-backend/controllers"
)

// SetupRoutes registers every endpoint: the public tracking surface and the
// management API.
func SetupRoutes(
	e *echo.Echo,
	trackingController *controllers.TrackingController,
	conversionController *controllers.ConversionController,
	affiliateController *controllers.AffiliateController,
	commissionController *controllers.CommissionController,
	payoutController *controllers.PayoutController,
) {
	// Public tracking surface
	e.GET("/affiliate/:code", trackingController.HandleClick)
	e.GET("/go/:code", trackingController.HandleShortLink)
	e.POST("/track/conversion", conversionController.HandleConversion)

	api := e.Group("/api")

	// Affiliates
	api.POST("/affiliates", affiliateController.Create)
	api.GET("/affiliates", affiliateController.List)
	api.GET("/affiliates/:id", affiliateController.Get)
	api.DELETE("/affiliates/:id", affiliateController.Delete)
	api.GET("/affiliates/user/:userId", affiliateController.GetByUser)
	api.PUT("/affiliates/:id/approve", affiliateController.Approve)
	api.PUT("/affiliates/:id/reject", affiliateController.Reject)
	api.GET("/affiliates/:id/stats", affiliateController.Stats)
	api.GET("/affiliates/:id/links", affiliateController.ListLinks)

	// Links
	api.POST("/links", affiliateController.GenerateLink)
	api.GET("/links/:linkId/stats", affiliateController.LinkStats)

	// Commissions
	api.POST("/commissions", commissionController.Create)
	api.GET("/commissions", commissionController.List)
	api.GET("/commissions/:id", commissionController.Get)
	api.PUT("/commissions/:id", commissionController.Update)
	api.DELETE("/commissions/:id", commissionController.Delete)
	api.PUT("/commissions/:id/approve", commissionController.Approve)
	api.PUT("/commissions/:id/reject", commissionController.Reject)

	// Payouts
	api.POST("/payouts", payoutController.Request)
	api.GET("/payouts", payoutController.List)
	api.GET("/payouts/summary", payoutController.Summary)
	api.POST("/payouts/bulk-process", payoutController.BulkProcess)
	api.POST("/payouts/schedule-mass", payoutController.ScheduleMass)
	api.POST("/payouts/process-due", payoutController.ProcessDue)
	api.GET("/payouts/:id", payoutController.Get)
	api.DELETE("/payouts/:id", payoutController.Delete)
	api.PUT("/payouts/:id/process", payoutController.Process)
	api.PUT("/payouts/:id/schedule", payoutController.Schedule)
	api.GET("/payouts/:id/invoice", payoutController.Invoice)
}
