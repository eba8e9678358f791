package repository

import (
	"context"
	"errors"
	"time"

	"github.com/animora/animora/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a credit ledger repository backed by GORM.
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) GetByUserID(ctx context.Context, userID string) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Initialize creates the account or resets an existing one to the given
// starting balance.
func (r *creditRepository) Initialize(ctx context.Context, account *models.CreditAccount) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"balance",
			"total_purchased",
			"total_used",
			"updated_at",
		}),
	}).Create(account).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).Where("user_id = ?", account.UserID).First(account).Error
}

func (r *creditRepository) CreateIfNotExists(ctx context.Context, account *models.CreditAccount) (bool, *models.CreditAccount, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(account)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.CreditAccount
	if err := r.db.WithContext(ctx).Where("user_id = ?", account.UserID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// ApplyDelta mutates the balance by entry.Amount and appends entry to the
// transaction log in one database transaction. Debits use a guarded
// UPDATE (balance >= amount) so concurrent calls cannot overdraw. Credits
// create a zero-balance account first when none exists.
func (r *creditRepository) ApplyDelta(ctx context.Context, entry *models.CreditTransaction) (*models.CreditAccount, error) {
	if entry.Amount == 0 {
		return nil, errors.New("repository: zero credit delta")
	}

	var account models.CreditAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if entry.Amount < 0 {
			if err := debit(tx, entry, -entry.Amount); err != nil {
				return err
			}
		} else {
			if err := seedAccount(tx, entry.UserID); err != nil {
				return err
			}
			if err := credit(tx, entry); err != nil {
				return err
			}
		}
		return appendEntry(tx, entry, &account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ApplyCreditOnce credits entry unless a transaction with the same user and
// reference id exists. The account row is locked before the lookup, so
// concurrent calls for one reference apply at most once. It reports whether
// the credit was applied.
func (r *creditRepository) ApplyCreditOnce(ctx context.Context, entry *models.CreditTransaction) (*models.CreditAccount, bool, error) {
	if entry.Amount <= 0 {
		return nil, false, errors.New("repository: credit once needs a positive amount")
	}
	if entry.ReferenceID == nil || *entry.ReferenceID == "" {
		return nil, false, errors.New("repository: credit once needs a reference id")
	}

	var (
		account models.CreditAccount
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := seedAccount(tx, entry.UserID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", entry.UserID).First(&account).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.CreditTransaction{}).
			Where("user_id = ? AND reference_id = ?", entry.UserID, *entry.ReferenceID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if err := credit(tx, entry); err != nil {
			return err
		}
		applied = true
		return appendEntry(tx, entry, &account)
	})
	if err != nil {
		return nil, false, err
	}
	return &account, applied, nil
}

func seedAccount(tx *gorm.DB, userID string) error {
	seed := models.CreditAccount{UserID: userID}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error
}

func debit(tx *gorm.DB, entry *models.CreditTransaction, amount int64) error {
	res := tx.Model(&models.CreditAccount{}).
		Where("user_id = ? AND balance >= ?", entry.UserID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"total_used": gorm.Expr("total_used + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&models.CreditAccount{}).Where("user_id = ?", entry.UserID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrInsufficientBalance
}

func credit(tx *gorm.DB, entry *models.CreditTransaction) error {
	now := time.Now()
	updates := map[string]interface{}{
		"balance":         gorm.Expr("balance + ?", entry.Amount),
		"total_purchased": gorm.Expr("total_purchased + ?", entry.Amount),
		"updated_at":      now,
	}
	if entry.Type == models.CreditTransactionPurchase {
		updates["last_purchase_at"] = now
	}
	res := tx.Model(&models.CreditAccount{}).Where("user_id = ?", entry.UserID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// appendEntry reads back the new balance into account and stores entry.
func appendEntry(tx *gorm.DB, entry *models.CreditTransaction, account *models.CreditAccount) error {
	if err := tx.Where("user_id = ?", entry.UserID).First(account).Error; err != nil {
		return err
	}
	entry.BalanceAfter = account.Balance
	return tx.Create(entry).Error
}

func (r *creditRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (r *creditRepository) HasReference(ctx context.Context, userID, referenceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ? AND reference_id = ?", userID, referenceID).
		Count(&count).Error
	return count > 0, err
}
