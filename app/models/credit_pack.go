package models

import "time"

// CreditPack is a one-time purchase of a fixed number of credits. A
// payment.completed event for ProviderProductID grants Credits.
type CreditPack struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name              string    `gorm:"type:varchar(100);not null" json:"name"`
	Description       string    `gorm:"type:varchar(500);default:''" json:"description"`
	ProviderProductID string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"provider_product_id"`
	Price             float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Credits           int64     `gorm:"not null;default:0" json:"credits"`
	Featured          bool      `gorm:"default:false" json:"featured"`
	IsActive          bool      `gorm:"default:true;index" json:"is_active"`
	SortOrder         int       `gorm:"default:0" json:"sort_order"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
