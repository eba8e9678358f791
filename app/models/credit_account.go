package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// CreditAccount holds the derived balance of a user's credit ledger.
// Balance always equals TotalPurchased - TotalUsed.
type CreditAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"user_id" validate:"required,max=191"`
	Balance        int64      `gorm:"not null;default:0" json:"balance" validate:"gte=0"`
	TotalPurchased int64      `gorm:"not null;default:0" json:"total_purchased" validate:"gte=0"`
	TotalUsed      int64      `gorm:"not null;default:0" json:"total_used" validate:"gte=0"`
	LastPurchaseAt *time.Time `gorm:"type:timestamp;default:null" json:"last_purchase_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *CreditAccount) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// Consistent reports whether the ledger identity holds for the account.
func (a *CreditAccount) Consistent() bool {
	return a != nil && a.Balance == a.TotalPurchased-a.TotalUsed
}
