package repository

import (
	"context"
	"time"

	"github.com/animora/animora/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook audit log repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed records the final outcome. Failures keep processed=false,
// store the error and bump retry_count.
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, success bool, errorMessage string) error {
	updates := map[string]interface{}{
		"processed": success,
	}
	if success {
		now := time.Now()
		updates["processed_at"] = &now
		updates["error_message"] = ""
	} else {
		updates["error_message"] = errorMessage
		updates["retry_count"] = gorm.Expr("retry_count + ?", 1)
	}

	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *webhookEventRepository) ListUnprocessed(ctx context.Context, limit, maxRetries int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ? AND retry_count < ?", false, maxRetries).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *webhookEventRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
