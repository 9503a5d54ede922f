// controllers/contact_controller.go
package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clearport/clearport_backend/config"
	"github.com/clearport/clearport_backend/models"
	"github.com/clearport/clearport_backend/utils"
)

// ContactController handles contact form submissions.
type ContactController struct {
	DB     *mongo.Client
	mailer *utils.Mailer
	logger *log.Logger
}

// NewContactController creates a new contact controller. The mailer may
// be nil when SMTP is not configured; submissions are still stored.
func NewContactController(db *mongo.Client, mailer *utils.Mailer) *ContactController {
	return &ContactController{
		DB:     db,
		mailer: mailer,
		logger: log.New(os.Stdout, "[CONTACT] ", log.LstdFlags),
	}
}

// SubmitMessage stores the message and forwards it to the support inbox.
func (cc *ContactController) SubmitMessage(c echo.Context) error {
	var req models.ContactRequest
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

	message := models.ContactMessage{
		ID:        primitive.NewObjectID(),
		Ticket:    uuid.New().String(),
		Name:      utils.SanitizeInput(req.Name),
		Email:     email,
		Subject:   utils.SanitizeInput(req.Subject),
		Message:   utils.SanitizeInput(req.Message),
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	collection := config.GetCollection(cc.DB, "contact_messages")
	if _, err := collection.InsertOne(ctx, message); err != nil {
		cc.logger.Printf("failed to store contact message: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to submit message",
		})
	}

	cc.forwardToSupport(message)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Message received. We will get back to you shortly",
		Data: map[string]string{
			"ticket": message.Ticket,
		},
	})
}

// forwardToSupport emails the message to the support inbox. Delivery is
// best effort; the stored record is the source of truth.
func (cc *ContactController) forwardToSupport(msg models.ContactMessage) {
	if cc.mailer == nil {
		return
	}
	supportEmail := os.Getenv("SUPPORT_EMAIL")
	if supportEmail == "" {
		return
	}

	body := fmt.Sprintf(`
		<h2>New contact message</h2>
		<p><strong>Ticket:</strong> %s</p>
		<p><strong>From:</strong> %s &lt;%s&gt;</p>
		<p><strong>Subject:</strong> %s</p>
		<p>%s</p>
	`, msg.Ticket, msg.Name, msg.Email, msg.Subject, msg.Message)

	if err := cc.mailer.Send(supportEmail, "[ClearPort] "+msg.Subject, body); err != nil {
		cc.logger.Printf("failed to forward contact message %s: %v", msg.Ticket, err)
	}
}
