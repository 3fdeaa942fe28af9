package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/refstack/affiliate-backend/config"
	"github.com/refstack/affiliate-backend/controllers"
	"github.com/refstack/affiliate-backend/middleware"
	"github.com/refstack/affiliate-backend/repositories"
	"github.com/refstack/affiliate-backend/routes"
	"github.com/refstack/affiliate-backend/services"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	settings := config.LoadSettings()
	if settings.CookieSecret == "" {
		log.Println("Warning: COOKIE_SECRET not set, attribution cookies will not survive restarts")
	}

	// Connect to Redis (optional, fraud counters degrade without it)
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Repositories
	affiliateRepo := repositories.NewAffiliateRepository(client)
	commissionRepo := repositories.NewCommissionRepository(client)
	visitRepo := repositories.NewVisitRepository(client)
	linkRepo := repositories.NewLinkRepository(client)
	shortLinkRepo := repositories.NewShortLinkRepository(client)
	paymentRepo := repositories.NewPaymentRepository(client)

	// Events
	dispatcher := services.NewEventDispatcher()

	// Services
	affiliateService := services.NewAffiliateService(affiliateRepo, commissionRepo, visitRepo, settings, dispatcher)
	commissionService := services.NewCommissionService(commissionRepo, affiliateService, settings, dispatcher)
	linkService := services.NewLinkService(linkRepo, shortLinkRepo, visitRepo, commissionRepo, affiliateService, settings, dispatcher, redisClient)

	gateways := services.NewGatewayRegistry()
	gateways.Register(services.NewPayPalGateway())
	gateways.Register(services.NewStripeGateway())
	gateways.Register(services.NewBankTransferGateway())

	paymentService := services.NewPaymentService(paymentRepo, commissionService, affiliateService, gateways, settings, dispatcher)

	emailService := services.NewEmailService(affiliateService)
	dispatcher.Subscribe(emailService.HandleEvent)

	// Controllers
	trackingController := controllers.NewTrackingController(linkService, affiliateService, settings)
	conversionController := controllers.NewConversionController(linkService, commissionService, settings)
	affiliateController := controllers.NewAffiliateController(affiliateService, linkService)
	commissionController := controllers.NewCommissionController(commissionService)
	payoutController := controllers.NewPayoutController(paymentService)

	// Echo
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	rateLimiter := middleware.NewRateLimiter()

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "Affiliate backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	routes.SetupRoutes(e, trackingController, conversionController, affiliateController, commissionController, payoutController)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on port %s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
