package router

import (
	"strings"

	"github.com/animora/animora/internal/pkg/env"
)

const defaultRateLimit = 60

// Config holds the settings of the HTTP surface
type Config struct {
	AdminUser     string
	AdminPassword string
	// RateLimit is the number of /api requests per minute and IP
	RateLimit int
	// DocsFile is the OpenAPI document served under /docs/api/v1
	DocsFile string
}

// LoadConfig reads the router settings from the environment
func LoadConfig() *Config {
	cfg := &Config{
		AdminUser:     strings.TrimSpace(env.GetEnv("ADMIN_USER", "")),
		AdminPassword: env.GetEnv("ADMIN_PASSWORD", ""),
		RateLimit:     env.GetEnvInt("API_RATE_LIMIT", defaultRateLimit),
		DocsFile:      env.GetEnv("API_DOCS_FILE", "public/docs/v1/openapi.yml"),
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	return cfg
}

// AdminEnabled reports whether basic auth credentials are configured
func (c *Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPassword != ""
}
