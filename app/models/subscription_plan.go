package models

import "time"

// SubscriptionPlan is an entry of the purchasable plan catalog.
type SubscriptionPlan struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name              string    `gorm:"type:varchar(100);not null" json:"name"`
	Description       string    `gorm:"type:varchar(500);default:''" json:"description"`
	ProviderProductID string    `gorm:"type:varchar(191);default:''" json:"provider_product_id"`
	PricePerMonth     float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price_per_month"`
	CreditsPerMonth   int64     `gorm:"not null;default:0" json:"credits_per_month"`
	IsActive          bool      `gorm:"default:true;index" json:"is_active"`
	SortOrder         int       `gorm:"default:0" json:"sort_order"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
