// controllers/country_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clearport/clearport_backend/config"
	"github.com/clearport/clearport_backend/models"
)

// CountryController serves the country reference data.
type CountryController struct {
	DB     *mongo.Client
	logger *log.Logger
}

// NewCountryController creates a new country controller
func NewCountryController(db *mongo.Client) *CountryController {
	return &CountryController{
		DB:     db,
		logger: log.New(os.Stdout, "[COUNTRY] ", log.LstdFlags),
	}
}

// GetCountries returns all countries sorted by name.
func (cc *CountryController) GetCountries(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	collection := config.GetCollection(cc.DB, "countries")
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		cc.logger.Printf("failed to query countries: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve countries",
		})
	}
	defer cursor.Close(ctx)

	var countries []models.Country
	if err := cursor.All(ctx, &countries); err != nil {
		cc.logger.Printf("failed to decode countries: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve countries",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Countries retrieved successfully",
		Data:    countries,
	})
}

// GetCountryBySlug returns a single country.
func (cc *CountryController) GetCountryBySlug(c echo.Context) error {
	slug := c.Param("slug")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	collection := config.GetCollection(cc.DB, "countries")

	var country models.Country
	err := collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&country)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Country not found",
		})
	}
	if err != nil {
		cc.logger.Printf("failed to query country %s: %v", slug, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to retrieve country",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Country retrieved successfully",
		Data:    country,
	})
}
