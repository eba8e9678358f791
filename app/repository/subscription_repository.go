package repository

import (
	"context"

	"github.com/animora/animora/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a subscription repository backed by GORM.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepository) UpsertByExternalID(ctx context.Context, sub *models.Subscription) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan_id",
			"plan_name",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"trial_end",
			"canceled_at",
			"credits_per_month",
			"price_per_month",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.WithContext(ctx).Where("external_subscription_id = ?", sub.ExternalSubscriptionID).
		First(sub).Error
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetActiveByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("created_at DESC").
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) UpdateByID(ctx context.Context, id uint, updates map[string]interface{}) (*models.Subscription, error) {
	return r.update(ctx, "id = ?", id, updates)
}

func (r *subscriptionRepository) UpdateByExternalID(ctx context.Context, externalID string, updates map[string]interface{}) (*models.Subscription, error) {
	return r.update(ctx, "external_subscription_id = ?", externalID, updates)
}

// update locates the row first so a missing row is reported as
// gorm.ErrRecordNotFound instead of a silent zero-row update.
func (r *subscriptionRepository) update(ctx context.Context, cond string, arg interface{}, updates map[string]interface{}) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(cond, arg).First(&sub).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
