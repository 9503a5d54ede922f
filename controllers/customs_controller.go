// controllers/customs_controller.go
package controllers

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/clearport/clearport_backend/models"
	"github.com/clearport/clearport_backend/services"
)

// CustomsController serves duty rate lookups.
type CustomsController struct {
	customs *services.CustomsService
	logger  *log.Logger
}

// NewCustomsController creates a new customs controller
func NewCustomsController(customs *services.CustomsService) *CustomsController {
	return &CustomsController{
		customs: customs,
		logger:  log.New(os.Stdout, "[CUSTOMS] ", log.LstdFlags),
	}
}

// GetDutyRate returns the duty rate for an HS code.
func (cc *CustomsController) GetDutyRate(c echo.Context) error {
	hsCode := c.Param("hscode")
	if hsCode == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "HS code is required",
		})
	}

	rate, err := cc.customs.DutyForHSCode(c.Request().Context(), hsCode)
	if err != nil {
		if errors.Is(err, services.ErrUnknownHSCode) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "No duty rate found for this HS code",
			})
		}
		cc.logger.Printf("duty lookup failed for %s: %v", hsCode, err)
		return c.JSON(http.StatusBadGateway, models.Response{
			Status:  http.StatusBadGateway,
			Message: "Duty lookup is temporarily unavailable",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Duty rate retrieved successfully",
		Data:    rate,
	})
}
