package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/clearport/clearport_backend/controllers"
	"github.com/clearport/clearport_backend/middleware"
)

// RegisterUserRoutes sets up routes that require an authenticated user
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController, twoFactorController *controllers.TwoFactorController, deviceController *controllers.DeviceController) {
	user := e.Group("/api/user")
	user.Use(middleware.JWTMiddleware())

	user.GET("/profile", userController.GetProfile)
	user.PUT("/profile", userController.UpdateProfile)
	user.POST("/change-password", userController.ChangePassword)

	user.POST("/2fa/setup", twoFactorController.BeginSetup)
	user.GET("/2fa/setup/qrcode", twoFactorController.SetupQRCode)
	user.POST("/2fa/confirm", twoFactorController.ConfirmSetup)

	devices := e.Group("/api/devices")
	devices.Use(middleware.JWTMiddleware())

	devices.POST("", deviceController.RegisterDevice)
	devices.GET("", deviceController.GetDevices)
}
