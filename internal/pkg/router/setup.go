package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/animora/animora/app/controllers"
)

// Router installs a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers bundles the controllers served by the HTTP surface
type Handlers struct {
	Credits       *controllers.CreditsController
	Subscriptions *controllers.SubscriptionController
	Webhooks      *controllers.WebhookController
	AdminWebhooks *controllers.AdminWebhookController
}

// InstallRouter registers system, API and admin routes. limiterStorage may be
// nil, the limiter then keeps its counters in memory.
func InstallRouter(app *fiber.App, cfg *Config, h *Handlers, limiterStorage fiber.Storage) {
	setup(app,
		NewSystemRouter(cfg),
		NewApiRouter(cfg, h, limiterStorage),
		NewAdminRouter(cfg, h),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
