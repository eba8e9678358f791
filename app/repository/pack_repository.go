package repository

import (
	"context"

	"github.com/animora/animora/app/models"
	"gorm.io/gorm"
)

type packRepository struct {
	db *gorm.DB
}

// NewPackRepository creates a credit pack catalog repository backed by GORM.
func NewPackRepository(db *gorm.DB) PackRepository {
	return &packRepository{db: db}
}

func (r *packRepository) ListActive(ctx context.Context) ([]models.CreditPack, error) {
	var packs []models.CreditPack
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Find(&packs).Error
	return packs, err
}

func (r *packRepository) GetByProductID(ctx context.Context, productID string) (*models.CreditPack, error) {
	var pack models.CreditPack
	if err := r.db.WithContext(ctx).
		Where("provider_product_id = ? AND is_active = ?", productID, true).
		First(&pack).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}
