// controllers/user_controller.go
package controllers

import (
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
)

// UserController handles profile reads and mutations for the
// authenticated user.
type UserController struct {
	DB       *mongo.Client
	identity *services.IdentityService
	logger   *log.Logger
}

// NewUserController creates a new user controller
func NewUserController(db *mongo.Client, identity *services.IdentityService) *UserController {
	return &UserController{
		DB:       db,
		identity: identity,
		logger:   log.New(os.Stdout, "[USER] ", log.LstdFlags),
	}
}

// GetProfile returns the sanitized profile of the token's user.
func (uc *UserController) GetProfile(c echo.Context) error {
	raw, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}
	userID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	user, err := uc.identity.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully",
		Data:    user,
	})
}

// UpdateProfile applies a partial update. Fields absent from the request
// body keep their stored values.
func (uc *UserController) UpdateProfile(c echo.Context) error {
	email, err := middleware.ExtractEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request data",
		})
	}

	if req.Mobile != nil {
		mobile, err := utils.SanitizePhone(*req.Mobile)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid phone number",
			})
		}
		req.Mobile = &mobile
	}
	if req.AccountType != nil &&
		*req.AccountType != models.AccountTypePersonal &&
		*req.AccountType != models.AccountTypeBusiness {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid account type",
		})
	}

	user, err := uc.identity.UpdateProfile(c.Request().Context(), email, req)
	if err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated successfully",
		Data:    user,
	})
}

// ChangePassword verifies the old password and replaces the hash. The
// email always comes from the token, never the body.
func (uc *UserController) ChangePassword(c echo.Context) error {
	email, err := middleware.ExtractEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	var req models.ChangePasswordRequest
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

	if err := uc.identity.ChangePassword(c.Request().Context(), email, req.OldPassword, req.NewPassword); err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password changed successfully",
	})
}
