package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/clearport/clearport_backend/controllers"
)

// RegisterAuthRoutes sets up the public authentication routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	e.POST("/api/auth/register", authController.Register)
	e.POST("/api/auth/login", authController.Login)
	e.POST("/api/auth/verify-phone", authController.VerifyPhone)
	e.POST("/api/auth/resend-code", authController.ResendCode)
	e.POST("/api/auth/verify-2fa", authController.VerifyTwoFactor)
}
