// controllers/device_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clearport/clearport_backend/config"
	"github.com/clearport/clearport_backend/middleware"
	"github.com/clearport/clearport_backend/models"
	"github.com/clearport/clearport_backend/services"
	"github.com/clearport/clearport_backend/utils"
)

// DeviceController handles IMEI device registrations.
type DeviceController struct {
	DB     *mongo.Client
	imei   *services.IMEIService
	logger *log.Logger
}

// NewDeviceController creates a new device controller
func NewDeviceController(db *mongo.Client, imei *services.IMEIService) *DeviceController {
	return &DeviceController{
		DB:     db,
		imei:   imei,
		logger: log.New(os.Stdout, "[DEVICE] ", log.LstdFlags),
	}
}

func (dc *DeviceController) requestUserID(c echo.Context) (primitive.ObjectID, error) {
	raw, err := middleware.ExtractUserID(c)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return primitive.ObjectIDFromHex(raw)
}

// RegisterDevice validates the IMEI, resolves its TAC against the lookup
// API and stores the registration under the authenticated user.
func (dc *DeviceController) RegisterDevice(c echo.Context) error {
	userID, err := dc.requestUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	var req models.RegisterDeviceRequest
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

	if !utils.ValidIMEI(req.IMEI) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid IMEI",
		})
	}

	device := models.Device{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		IMEI:         req.IMEI,
		TAC:          utils.TACFromIMEI(req.IMEI),
		Reference:    uuid.New().String(),
		RegisteredAt: time.Now(),
	}

	// Lookup enriches the record; a lookup outage must not block
	// registration.
	if info, err := dc.imei.Lookup(c.Request().Context(), req.IMEI); err != nil {
		dc.logger.Printf("IMEI lookup failed for %s: %v", device.TAC, err)
	} else {
		device.Brand = info.Brand
		device.Model = info.Model
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	collection := config.GetCollection(dc.DB, "devices")
	if _, err := collection.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Device already registered",
			})
		}
		dc.logger.Printf("failed to insert device: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to register device",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Device registered successfully",
		Data:    device,
	})
}

// GetDevices lists the authenticated user's registered devices, newest
// first.
func (dc *DeviceController) GetDevices(c echo.Context) error {
	userID, err := dc.requestUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid authentication token",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	collection := config.GetCollection(dc.DB, "devices")
	findOptions := options.Find().SetSort(bson.D{{Key: "registeredAt", Value: -1}})

	cursor, err := collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		dc.logger.Printf("failed to query devices: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve devices",
		})
	}
	defer cursor.Close(ctx)

	var devices []models.Device
	if err := cursor.All(ctx, &devices); err != nil {
		dc.logger.Printf("failed to decode devices: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve devices",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Devices retrieved successfully",
		Data:    devices,
	})
}
