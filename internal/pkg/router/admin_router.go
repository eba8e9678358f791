package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
)

type AdminRouter struct {
	cfg *Config
	h   *Handlers
}

// InstallRouter registers /metrics and /admin behind basic auth. Without
// credentials neither is mounted.
func (r AdminRouter) InstallRouter(app *fiber.App) {
	if !r.cfg.AdminEnabled() {
		log.Warn("[Router] ADMIN_USER/ADMIN_PASSWORD not set, admin routes and metrics disabled")
		return
	}

	auth := basicauth.New(basicauth.Config{
		Users: map[string]string{
			r.cfg.AdminUser: r.cfg.AdminPassword,
		},
		Realm: "Animora Admin",
	})

	// fiber metrics
	app.Get("/metrics", auth, monitor.New(monitor.Config{Title: "Animora Metrics"}))

	adminGroup := app.Group("/admin", auth)
	adminGroup.Get("/webhooks/events", r.h.AdminWebhooks.HandleListEvents)
}

func NewAdminRouter(cfg *Config, h *Handlers) *AdminRouter {
	return &AdminRouter{cfg: cfg, h: h}
}
