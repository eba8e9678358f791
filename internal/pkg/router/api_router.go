package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const webhookPrefix = "/api/webhooks"

type ApiRouter struct {
	cfg     *Config
	h       *Handlers
	storage fiber.Storage
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", r.limiter())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Get("/credits", r.h.Credits.HandleGetCredits)
	api.Post("/credits", r.h.Credits.HandlePostCredits)
	api.Get("/credits/transactions", r.h.Credits.HandleGetTransactions)
	api.Get("/credits/packs", r.h.Credits.HandleGetPacks)

	api.Get("/subscriptions", r.h.Subscriptions.HandleGetSubscriptions)
	api.Post("/subscriptions", r.h.Subscriptions.HandlePostSubscriptions)

	// Provider retries must never be throttled, see limiter Next
	api.Post("/webhooks/creem", r.h.Webhooks.HandleCreemWebhook)
}

func (r ApiRouter) limiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        r.cfg.RateLimit,
		Expiration: time.Minute,
		Storage:    r.storage,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), webhookPrefix)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests",
			})
		},
	})
}

func NewApiRouter(cfg *Config, h *Handlers, storage fiber.Storage) *ApiRouter {
	return &ApiRouter{cfg: cfg, h: h, storage: storage}
}
