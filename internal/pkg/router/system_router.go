package router

import (
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type SystemRouter struct {
	cfg *Config
}

func (r SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// SWAGGER / OPENAPI
	if r.cfg.DocsFile == "" {
		return
	}
	if _, err := os.Stat(r.cfg.DocsFile); err != nil {
		log.Warnf("[Router] API docs not served, %s not readable: %v", r.cfg.DocsFile, err)
		return
	}
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: r.cfg.DocsFile,
		Path:     "v1",
		Title:    "Animora API",
	}))
}

func NewSystemRouter(cfg *Config) *SystemRouter {
	return &SystemRouter{cfg: cfg}
}
