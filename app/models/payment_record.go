package models

import "time"

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentRecord is the audit row for a provider payment outcome.
type PaymentRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            string    `gorm:"type:varchar(191);not null;index" json:"user_id"`
	ExternalPaymentID string    `gorm:"type:varchar(191);not null;index" json:"external_payment_id"`
	Amount            float64   `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`
	CreditsPurchased  int64     `gorm:"not null;default:0" json:"credits_purchased"`
	MetadataJSON      string    `gorm:"column:metadata;type:longtext" json:"metadata,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}
