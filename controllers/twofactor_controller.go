// controllers/twofactor_controller.go
package controllers

import (
	"bytes"
	"image/png"
	"log"
	"net/http"
	"os"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clearport/clearport_backend/middleware"
	"github.com/clearport/clearport_backend/models"
	"github.com/clearport/clearport_backend/services"
)

// TwoFactorController handles TOTP enrollment for authenticated users.
type TwoFactorController struct {
	DB       *mongo.Client
	identity *services.IdentityService
	logger   *log.Logger
}

// NewTwoFactorController creates a new 2FA controller
func NewTwoFactorController(db *mongo.Client, identity *services.IdentityService) *TwoFactorController {
	return &TwoFactorController{
		DB:       db,
		identity: identity,
		logger:   log.New(os.Stdout, "[2FA] ", log.LstdFlags),
	}
}

func (tc *TwoFactorController) requestUserID(c echo.Context) (primitive.ObjectID, error) {
	raw, err := middleware.ExtractUserID(c)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return primitive.ObjectIDFromHex(raw)
}

// BeginSetup starts a TOTP enrollment and returns the shared secret plus
// its provisioning URI. The secret is inactive until confirmed.
func (tc *TwoFactorController) BeginSetup(c echo.Context) error {
	userID, err := tc.requestUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	enrollment, err := tc.identity.BeginTwoFactorEnrollment(c.Request().Context(), userID)
	if err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Scan the QR code with your authenticator app, then confirm with a token",
		Data:    enrollment,
	})
}

// SetupQRCode renders the pending enrollment's provisioning URI as a PNG
// QR code.
func (tc *TwoFactorController) SetupQRCode(c echo.Context) error {
	userID, err := tc.requestUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	uri, err := tc.identity.TwoFactorEnrollmentURI(c.Request().Context(), userID)
	if err != nil {
		return respondIdentityError(c, err)
	}

	qrCode, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		tc.logger.Printf("failed to encode QR code: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	qrCode, err = barcode.Scale(qrCode, 200, 200)
	if err != nil {
		tc.logger.Printf("failed to scale QR code: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		tc.logger.Printf("failed to render QR code: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// ConfirmSetup activates the pending enrollment once the submitted token
// validates against the temp secret.
func (tc *TwoFactorController) ConfirmSetup(c echo.Context) error {
	userID, err := tc.requestUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	var req struct {
		Token string `json:"token" validate:"required"`
	}
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

	user, err := tc.identity.ConfirmTwoFactorEnrollment(c.Request().Context(), userID, req.Token)
	if err != nil {
		return respondIdentityError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Two-factor authentication enabled",
		Data:    user,
	})
}
