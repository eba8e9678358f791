package models

import "time"

type CreditTransactionType string

const (
	CreditTransactionPurchase CreditTransactionType = "purchase"
	CreditTransactionUsage    CreditTransactionType = "usage"
	CreditTransactionRefund   CreditTransactionType = "refund"
	CreditTransactionBonus    CreditTransactionType = "bonus"
)

// IsCredit reports whether the transaction type increases the balance.
func (t CreditTransactionType) IsCredit() bool {
	switch t {
	case CreditTransactionPurchase, CreditTransactionRefund, CreditTransactionBonus:
		return true
	default:
		return false
	}
}

// CreditTransaction is an append-only ledger entry. Amount is signed:
// positive for purchases/refunds/bonuses, negative for usage.
type CreditTransaction struct {
	ID           uint                  `gorm:"primaryKey" json:"id"`
	UserID       string                `gorm:"type:varchar(191);not null;index;index:idx_credit_transactions_user_ref,priority:1" json:"user_id"`
	Type         CreditTransactionType `gorm:"column:transaction_type;type:varchar(20);not null;index" json:"transaction_type"`
	Amount       int64                 `gorm:"not null" json:"amount"`
	BalanceAfter int64                 `gorm:"not null" json:"balance_after"`
	Description  string                `gorm:"type:varchar(255);default:''" json:"description"`
	ReferenceID  *string               `gorm:"type:varchar(191);default:null;index:idx_credit_transactions_user_ref,priority:2" json:"reference_id"`
	MetadataJSON string                `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	CreatedAt    time.Time             `gorm:"autoCreateTime;index" json:"created_at"`
}
