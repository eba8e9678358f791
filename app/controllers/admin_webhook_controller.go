package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/animora/animora/app/models"
)

// WebhookEventInspector reads the webhook audit log
type WebhookEventInspector interface {
	PendingEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error)
	UserEvents(ctx context.Context, userID string, limit int) ([]models.WebhookEvent, error)
}

// AdminWebhookController lists webhook events for operators
type AdminWebhookController struct {
	events WebhookEventInspector
}

// NewAdminWebhookController creates the admin webhook controller
func NewAdminWebhookController(events WebhookEventInspector) *AdminWebhookController {
	return &AdminWebhookController{events: events}
}

// HandleListEvents serves ?status=unprocessed (default) or ?status=user&user_id=
func (ac *AdminWebhookController) HandleListEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		events []models.WebhookEvent
		err    error
	)
	switch c.Query("status", "unprocessed") {
	case "unprocessed":
		events, err = ac.events.PendingEvents(ctx, limit)
	case "user":
		userID := queryUserID(c)
		if userID == "" {
			return errorResponse(c, fiber.StatusBadRequest, "User ID is required", nil)
		}
		events, err = ac.events.UserEvents(ctx, userID, limit)
	default:
		return errorResponse(c, fiber.StatusBadRequest, "Invalid status parameter", nil)
	}
	if err != nil {
		fiberlog.Errorf("[Admin] Failed to list webhook events: %v", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list webhook events", err)
	}
	if events == nil {
		events = []models.WebhookEvent{}
	}

	return c.JSON(fiber.Map{"success": true, "events": events})
}
