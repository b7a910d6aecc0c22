package service

import (
	"context"
	"testing"

	"tnf-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	st.addProduct(models.Product{IkasProductID: "p1", Name: "Nuptse Jacket"})
	st.addProduct(models.Product{IkasProductID: "p2", Name: "Borealis Backpack"})
	ada := st.addUser("nuptse_fan")
	require.NoError(t, st.CreateVideo(ctx, &models.Video{UserID: ada.ID, Title: "Nuptse review"}))
	require.NoError(t, st.UpsertBrand(ctx, &models.Brand{IkasID: "b1", Name: "The North Face"}))
	svc := NewSearchService(st)

	t.Run("all categories", func(t *testing.T) {
		res, err := svc.Search(ctx, "nuptse", "")
		require.NoError(t, err)
		require.Len(t, res.Products, 1)
		assert.Equal(t, "p1", res.Products[0].IkasProductID)
		assert.Len(t, res.Videos, 1)
		assert.Len(t, res.Users, 1)
		assert.Empty(t, res.Brands)
	})

	t.Run("single category", func(t *testing.T) {
		res, err := svc.Search(ctx, "north", SearchBrands)
		require.NoError(t, err)
		assert.Len(t, res.Brands, 1)
		assert.Nil(t, res.Products)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := svc.Search(ctx, "  ", "")
		assert.Equal(t, EINVALID, ErrorCode(err))
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := svc.Search(ctx, "x", "orders")
		assert.Equal(t, EINVALID, ErrorCode(err))
	})
}
