package billing

import (
	"strings"

	"github.com/animora/animora/internal/pkg/env"
)

// Config holds the payment provider settings.
type Config struct {
	WebhookSecret string
	AllowUnsigned bool
	Dedupe        bool
	APIKey        string
	APIURL        string
	SiteURL       string
}

// LoadConfig reads the Creem settings from the environment.
func LoadConfig() *Config {
	return &Config{
		WebhookSecret: strings.TrimSpace(env.GetEnv("CREEM_WEBHOOK_SECRET", "")),
		AllowUnsigned: env.GetEnvBool("CREEM_ALLOW_UNSIGNED_WEBHOOKS", false),
		Dedupe:        env.GetEnvBool("CREEM_WEBHOOK_DEDUPE", true),
		APIKey:        strings.TrimSpace(env.GetEnv("CREEM_API_KEY", "")),
		APIURL:        strings.TrimRight(strings.TrimSpace(env.GetEnv("CREEM_API_URL", "")), "/"),
		SiteURL:       strings.TrimRight(strings.TrimSpace(env.GetEnv("SITE_URL", "http://localhost:4000")), "/"),
	}
}

// Verifier builds the signature verifier for webhook deliveries.
func (c *Config) Verifier() *SignatureVerifier {
	return &SignatureVerifier{Secret: c.WebhookSecret, AllowUnsigned: c.AllowUnsigned}
}
