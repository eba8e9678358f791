package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/internal/pkg/billing"
)

// WebhookIngestor processes raw provider deliveries
type WebhookIngestor interface {
	Handle(ctx context.Context, d billing.Delivery) (*billing.Result, error)
}

// WebhookController receives payment provider webhooks
type WebhookController struct {
	ingestor WebhookIngestor
}

// NewWebhookController creates a webhook controller
func NewWebhookController(ingestor WebhookIngestor) *WebhookController {
	return &WebhookController{ingestor: ingestor}
}

// HandleCreemWebhook verifies and processes a Creem delivery. The body is
// passed on unparsed so the signature covers the exact bytes received.
func (wc *WebhookController) HandleCreemWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := wc.ingestor.Handle(ctx, billing.Delivery{
		Source:    models.WebhookSourceCreem,
		Body:      rawBody,
		Signature: c.Get(billing.SignatureHeader),
	})
	if err != nil {
		var ie *billing.IngestError
		if !errors.As(err, &ie) {
			fiberlog.Errorf("[Webhook] Unexpected ingestion error: %v", err)
			return errorResponse(c, fiber.StatusInternalServerError, "Webhook processing failed", nil)
		}
		body := fiber.Map{
			"success": false,
			"error":   ie.Message,
		}
		if details := ie.Details(); details != "" {
			body["details"] = details
		}
		if ie.EventID != 0 {
			body["event_id"] = ie.EventID
		}
		return c.Status(ie.Status).JSON(body)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"event_id":  res.EventID,
		"processed": res.Processed,
	})
}
