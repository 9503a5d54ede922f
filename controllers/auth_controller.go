// controllers/auth_controller.go
package controllers

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clearport/clearport_backend/middleware"
	"github.com/clearport/clearport_backend/models"
	"github.com/clearport/clearport_backend/services"
	"github.com/clearport/clearport_backend/utils"
	"github.com/go-redis/redis/v8"
)

// AuthController handles registration, login and the verification flows.
type AuthController struct {
	DB       *mongo.Client
	identity *services.IdentityService
	redis    *redis.Client
	logger   *log.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(db *mongo.Client, identity *services.IdentityService, redisClient *redis.Client) *AuthController {
	return &AuthController{
		DB:       db,
		identity: identity,
		redis:    redisClient,
		logger:   log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
}

// respondIdentityError maps workflow errors to HTTP responses. Internal
// faults stay opaque; everything else carries its taxonomy message.
func respondIdentityError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "Something went wrong. Please try again later"

	switch {
	case errors.Is(err, services.ErrDuplicateEmail):
		status, message = http.StatusConflict, "Email already registered"
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "Account not found"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, services.ErrInvalidOldPassword):
		status, message = http.StatusUnauthorized, "Current password is incorrect"
	case errors.Is(err, services.ErrInvalidOrExpiredCode):
		status, message = http.StatusBadRequest, "Invalid or expired verification code"
	case errors.Is(err, services.ErrAlreadyVerified):
		status, message = http.StatusConflict, "Phone number is already verified"
	case errors.Is(err, services.ErrNoEnrollmentInProgress):
		status, message = http.StatusConflict, "No two-factor enrollment in progress"
	case errors.Is(err, services.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "Invalid authentication token"
	case errors.Is(err, services.ErrNotEnabled):
		status, message = http.StatusBadRequest, "Two-factor authentication is not enabled"
	case errors.Is(err, services.ErrPhoneMismatch):
		status, message = http.StatusBadRequest, "Phone number does not match our records"
	}

	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
	})
}

func parseUserID(raw string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(raw)
}

// Register creates an unverified account and sends the phone code.
func (ac *AuthController) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request data",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}
	req.Email = email

	mobile, err := utils.SanitizePhone(req.Mobile)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number",
		})
	}
	req.Mobile = mobile
	req.FirstName = utils.SanitizeInput(req.FirstName)
	req.LastName = utils.SanitizeInput(req.LastName)
	req.Address = utils.SanitizeInput(req.Address)

	result, err := ac.identity.Register(c.Request().Context(), req)
	if err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Registration successful. A verification code has been sent to your phone",
		Data:    result,
	})
}

// Login checks credentials and either issues tokens, demands phone
// verification, or demands a 2FA token.
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request data",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}

	result, err := ac.identity.Login(c.Request().Context(), email, req.Password)
	if err != nil {
		ac.logger.Printf("login rejected for %s", utils.MaskEmail(email))
		return respondIdentityError(c, err)
	}

	if result.RequiresPhoneVerification {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Phone verification required. A new code has been sent",
			Data:    result,
		})
	}

	if result.RequiresTwoFactor {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Two-factor authentication required",
			Data: map[string]interface{}{
				"requiresTwoFactor": true,
				"userId":            result.UserID,
			},
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(result.UserID, result.User.Email, result.User.AccountType)
	if err != nil {
		ac.logger.Printf("failed to generate tokens for %s: %v", result.UserID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Something went wrong. Please try again later",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         result.User,
		},
	})
}

// VerifyPhone consumes a verification code and, on success, issues the
// first session tokens.
func (ac *AuthController) VerifyPhone(c echo.Context) error {
	var req models.VerifyPhoneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request data",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	if ac.redis != nil {
		if err := utils.ValidateCodeAttempts(req.UserID, ac.redis); err != nil {
			return c.JSON(http.StatusTooManyRequests, models.Response{
				Status:  http.StatusTooManyRequests,
				Message: "Too many verification attempts. Please try again later",
			})
		}
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	if err := ac.identity.VerifyPhone(c.Request().Context(), userID, req.Code); err != nil {
		return respondIdentityError(c, err)
	}

	user, err := ac.identity.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return respondIdentityError(c, err)
	}

	if user.HasTwoFactor() {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Phone verified. Two-factor authentication required",
			Data: map[string]interface{}{
				"requiresTwoFactor": true,
				"userId":            req.UserID,
			},
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.AccountType)
	if err != nil {
		ac.logger.Printf("failed to generate tokens for %s: %v", req.UserID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Something went wrong. Please try again later",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Phone number verified successfully",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         user,
		},
	})
}

// ResendCode regenerates the verification code and redispatches it.
func (ac *AuthController) ResendCode(c echo.Context) error {
	var req models.ResendCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request data",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	mobile, err := utils.SanitizePhone(req.Mobile)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number",
		})
	}

	if err := ac.identity.ResendVerificationCode(c.Request().Context(), userID, mobile); err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "A new verification code has been sent",
	})
}

// VerifyTwoFactor is the login-time 2FA challenge. A valid token
// completes the login and issues session tokens.
func (ac *AuthController) VerifyTwoFactor(c echo.Context) error {
	var req models.TwoFactorTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request data",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed: " + err.Error(),
		})
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	user, err := ac.identity.VerifyTwoFactor(c.Request().Context(), userID, req.Token)
	if err != nil {
		return respondIdentityError(c, err)
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.AccountType)
	if err != nil {
		ac.logger.Printf("failed to generate tokens for %s: %v", req.UserID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Something went wrong. Please try again later",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token":        token,
			"refreshToken": refreshToken,
			"user":         user,
		},
	})
}
