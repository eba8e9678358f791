package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/app/repository"
)

// Catalog is the read side of the one-time credit pack catalog.
type Catalog struct {
	repo repository.PackRepository
}

// NewCatalog creates a pack catalog.
func NewCatalog(repo repository.PackRepository) *Catalog {
	return &Catalog{repo: repo}
}

// ListPacks returns the active packs in display order.
func (c *Catalog) ListPacks(ctx context.Context) ([]models.CreditPack, error) {
	packs, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	return packs, nil
}

// CreditsForProduct resolves the credit amount of a provider product. ok is
// false when no active pack sells that product.
func (c *Catalog) CreditsForProduct(ctx context.Context, productID string) (int64, bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, false, nil
	}
	pack, err := c.repo.GetByProductID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve pack %s: %w", productID, err)
	}
	return pack.Credits, true, nil
}
