package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/redsponsor/redsponsor_backend/config"
	"github.com/redsponsor/redsponsor_backend/controllers"
	"github.com/redsponsor/redsponsor_backend/middleware"
	"github.com/redsponsor/redsponsor_backend/repositories"
	"github.com/redsponsor/redsponsor_backend/routes"
	"github.com/redsponsor/redsponsor_backend/services"
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
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis (optional, distribution markers only)
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Redsponsor Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize store and distribution engine
	store := repositories.NewMongoStore(client)
	payoutConfig := config.LoadPayoutConfig()
	engine := services.NewEngine(store, payoutConfig, services.NewRedisMarkers(redisClient))

	// Initialize controllers
	authController := controllers.NewAuthController(store)
	purchaseController := controllers.NewPurchaseController(store, engine)
	referralController := controllers.NewReferralController(store)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterPurchaseRoutes(e, purchaseController)
	routes.RegisterReferralRoutes(e, referralController)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}
