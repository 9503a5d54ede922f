package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clearport/clearport_backend/controllers"
	"github.com/clearport/clearport_backend/services"
	"github.com/clearport/clearport_backend/utils"
	"github.com/go-redis/redis/v8"
)

// SetupRoutes configures all API routes by calling individual route
// registration functions
func SetupRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client, identity *services.IdentityService, mailer *utils.Mailer) {
	authController := controllers.NewAuthController(db, identity, redisClient)
	userController := controllers.NewUserController(db, identity)
	twoFactorController := controllers.NewTwoFactorController(db, identity)
	deviceController := controllers.NewDeviceController(db, services.NewIMEIService())
	countryController := controllers.NewCountryController(db)
	customsController := controllers.NewCustomsController(services.NewCustomsService(redisClient))
	contactController := controllers.NewContactController(db, mailer)

	RegisterAuthRoutes(e, authController)
	RegisterUserRoutes(e, userController, twoFactorController, deviceController)

	// Public reference data and contact routes
	e.GET("/api/countries", countryController.GetCountries)
	e.GET("/api/countries/:slug", countryController.GetCountryBySlug)
	e.GET("/api/customs/duty/:hscode", customsController.GetDutyRate)
	e.POST("/api/contact", contactController.SubmitMessage)
}
