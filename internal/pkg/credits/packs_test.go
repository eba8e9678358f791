package credits

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/app/repository"
)

func TestCatalogResolvesActivePacks(t *testing.T) {
	db := newTestDB(t)
	c := NewCatalog(repository.NewPackRepository(db))
	ctx := context.Background()

	require.NoError(t, db.Create(&[]models.CreditPack{
		{ID: "tier-15-animations", Name: "Creator Pack", ProviderProductID: "prod_15", Price: 29, Credits: 15, IsActive: true, SortOrder: 2},
		{ID: "tier-5-animations", Name: "Starter Pack", ProviderProductID: "prod_5", Price: 12, Credits: 5, IsActive: true, SortOrder: 1},
		{ID: "tier-retired", Name: "Retired", ProviderProductID: "prod_old", Credits: 3, IsActive: true, SortOrder: 0},
	}).Error)
	require.NoError(t, db.Model(&models.CreditPack{}).Where("id = ?", "tier-retired").Update("is_active", false).Error)

	packs, err := c.ListPacks(ctx)
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, "tier-5-animations", packs[0].ID)
	assert.Equal(t, "tier-15-animations", packs[1].ID)

	amount, ok, err := c.CreditsForProduct(ctx, " prod_15 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(15), amount)

	for _, product := range []string{"", "prod_old", "prod_missing"} {
		amount, ok, err = c.CreditsForProduct(ctx, product)
		require.NoError(t, err)
		assert.False(t, ok, product)
		assert.Zero(t, amount)
	}
}
