package billing

import (
	"strings"

	"github.com/animora/animora/app/models"
)

// NormalizeStatus maps provider subscription states onto local ones.
// An empty status maps to def.
func NormalizeStatus(status string, def models.SubscriptionStatus) models.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
		return def
	case "active":
		return models.SubscriptionStatusActive
	case "trialing", "trial":
		return models.SubscriptionStatusTrialing
	case "past_due", "unpaid", "incomplete":
		return models.SubscriptionStatusPastDue
	case "canceled", "cancelled", "incomplete_expired", "expired":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusInactive
	}
}
