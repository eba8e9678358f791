package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/animora/animora/internal/pkg/env"
)

func TestLoadConfig(t *testing.T) {
	env.Env = map[string]string{
		"CREEM_WEBHOOK_SECRET":          " whsec ",
		"CREEM_ALLOW_UNSIGNED_WEBHOOKS": "true",
		"CREEM_API_URL":                 "https://api.creem.test/v1/",
		"SITE_URL":                      "https://animora.test/",
	}
	t.Cleanup(func() { env.Env = nil })

	cfg := LoadConfig()
	assert.Equal(t, "whsec", cfg.WebhookSecret)
	assert.True(t, cfg.AllowUnsigned)
	assert.True(t, cfg.Dedupe)
	assert.Equal(t, "https://api.creem.test/v1", cfg.APIURL)
	assert.Equal(t, "https://animora.test", cfg.SiteURL)

	v := cfg.Verifier()
	assert.Equal(t, "whsec", v.Secret)
	assert.True(t, v.AllowUnsigned)
}
