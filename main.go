package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/clearport/clearport_backend/config"
	"github.com/clearport/clearport_backend/middleware"
	"github.com/clearport/clearport_backend/repositories"
	"github.com/clearport/clearport_backend/routes"
	"github.com/clearport/clearport_backend/services"
	"github.com/clearport/clearport_backend/utils"
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

	// Connect to Redis
	redisClient := config.ConnectRedis()
	defer config.CloseRedis()

	// Connect to database
	client := config.ConnectDB()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(middleware.SecurityHeaders())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "ClearPort Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Wire the identity workflow with its collaborators
	userRepo := repositories.NewUserRepository(client)
	identity := services.NewIdentityService(
		userRepo,
		utils.BcryptHasher{},
		utils.VerificationCodeGenerator{},
		utils.NewSMSService(),
		utils.NewTOTPService(os.Getenv("TOTP_ISSUER")),
	)

	mailer, err := utils.NewMailer()
	if err != nil {
		log.Printf("Warning: mailer disabled: %v", err)
		mailer = nil
	}

	routes.SetupRoutes(e, client, redisClient, identity, mailer)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
