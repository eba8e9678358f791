package models

import "time"

// Webhook sources.
const (
	WebhookSourceCreem    = "creem"
	WebhookSourceStripe   = "stripe"
	WebhookSourceInternal = "internal"
)

// MaxWebhookRetries bounds which failed events are still reported as pending.
const MaxWebhookRetries = 5

// WebhookEvent is the append-only audit record of an inbound webhook call.
// It is written before any side effect and updated once with the outcome.
type WebhookEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	DeliveryID   string     `gorm:"type:char(36);not null;uniqueIndex" json:"delivery_id"`
	EventType    string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Source       string     `gorm:"type:varchar(20);not null;index" json:"source"`
	PayloadJSON  string     `gorm:"column:event_data;type:longtext;not null" json:"event_data"`
	Processed    bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt  *time.Time `gorm:"type:timestamp;default:null" json:"processed_at"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int        `gorm:"not null;default:0" json:"retry_count"`
	UserID       *string    `gorm:"type:varchar(191);default:null;index" json:"user_id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
