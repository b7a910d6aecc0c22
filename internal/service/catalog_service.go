package service

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/store"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CatalogService serves the locally cached catalog.
type CatalogService struct {
	store       CatalogStore
	gateway     CommerceGateway
	cache       VariantTypeCache
	listLimit   int
	concurrency int
	logger      *zap.Logger
}

func NewCatalogService(store CatalogStore, gateway CommerceGateway, cache VariantTypeCache, listLimit, concurrency int) *CatalogService {
	if listLimit <= 0 {
		listLimit = 20
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &CatalogService{
		store:       store,
		gateway:     gateway,
		cache:       cache,
		listLimit:   listLimit,
		concurrency: concurrency,
		logger:      util.Named("catalog"),
	}
}

// VariantView is a variant in the commerce platform's response shape.
type VariantView struct {
	ID              string                   `json:"id"`
	SKU             string                   `json:"sku"`
	IsActive        bool                     `json:"isActive"`
	Weight          float64                  `json:"weight"`
	Images          []models.VariantImage    `json:"images"`
	Prices          []ikas.VariantPrice      `json:"prices"`
	VariantValueIDs []models.VariantValueRef `json:"variantValueIds"`
}

// NormalizedValue is a variant value paired with the product variant it
// belongs to.
type NormalizedValue struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ColorCode        string `json:"colorCode,omitempty"`
	ThumbnailImageID string `json:"thumbnailImageId,omitempty"`
	ParentID         string `json:"parentId,omitempty"`
}

type NormalizedVariantType struct {
	VariantTypeID string            `json:"variantTypeId"`
	Name          string            `json:"name"`
	SelectionType string            `json:"selectionType"`
	Order         int               `json:"order"`
	Values        []NormalizedValue `json:"values"`
}

type ProductView struct {
	ID                  uuid.UUID                  `json:"id"`
	IkasProductID       string                     `json:"ikasProductId"`
	Name                string                     `json:"name"`
	Description         string                     `json:"description"`
	Brand               models.BrandRef            `json:"brand"`
	CategoryIDs         []string                   `json:"categoryIds"`
	ProductVariantTypes models.ProductVariantTypes `json:"productVariantTypes"`
	Variants            []VariantView              `json:"variants"`
	DisplayVariant      *VariantView               `json:"displayVariant,omitempty"`
	IsFavorite          bool                       `json:"isFavorite"`
	NormalizedVariants  []NormalizedVariantType    `json:"normalizedVariants,omitempty"`
}

type TrendingProduct struct {
	ProductView
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
}

// List returns the first page of cached products with favorite status for
// viewer (false for anonymous callers) and normalized variants.
func (s *CatalogService) List(ctx context.Context, viewer *uuid.UUID, page int) ([]ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	products, err := s.store.ListProducts(ctx, s.listLimit, (page-1)*s.listLimit)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	favorites, err := s.favorites(ctx, viewer, products)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	views := make([]ProductView, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range products {
		i := i
		views[i] = toView(&products[i])
		views[i].IsFavorite = favorites[products[i].ID.String()]
		g.Go(func() error {
			normalized, err := s.NormalizeVariants(gctx, &products[i])
			if err != nil {
				return err
			}
			views[i].NormalizedVariants = normalized
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, util.RecordError(span, upstream("failed to resolve product variants", err))
	}
	return views, nil
}

// GetByID resolves id as a local id first, then as an ikas product id. A
// signed-in viewer gets a recorded view and their favorite status.
func (s *CatalogService) GetByID(ctx context.Context, id string, viewer *uuid.UUID) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetByID")
	defer span.End()

	product, err := findProduct(ctx, s.store, id)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	view := toView(product)
	if viewer != nil {
		favorites, err := s.store.FavoritedProductIDs(ctx, *viewer, []string{product.ID.String()})
		if err != nil {
			return nil, util.RecordError(span, err)
		}
		view.IsFavorite = favorites[product.ID.String()]

		if err := s.store.RecordProductView(ctx, *viewer, product.ID); err != nil {
			s.logger.Warn("Failed to record product view", zap.String("product_id", product.ID.String()), zap.Error(err))
		}
	}

	normalized, err := s.NormalizeVariants(ctx, product)
	if err != nil {
		return nil, util.RecordError(span, upstream("failed to resolve product variants", err))
	}
	view.NormalizedVariants = normalized
	return &view, nil
}

// NormalizeVariants expands each of the product's variant types into the
// values present on the product. The Nth present value is paired with the
// Nth product variant by position.
func (s *CatalogService) NormalizeVariants(ctx context.Context, product *models.Product) ([]NormalizedVariantType, error) {
	out := make([]NormalizedVariantType, 0, len(product.VariantTypes))
	for _, pvt := range product.VariantTypes {
		vt, err := s.variantType(ctx, pvt.VariantTypeID)
		if err != nil {
			return nil, err
		}

		present := make(map[string]bool, len(pvt.VariantValueIDs))
		for _, id := range pvt.VariantValueIDs {
			present[id] = true
		}

		values := make([]NormalizedValue, 0, len(pvt.VariantValueIDs))
		for _, v := range vt.Values {
			if !present[v.ID] {
				continue
			}
			nv := NormalizedValue{ID: v.ID, Name: v.Name, ColorCode: v.ColorCode, ThumbnailImageID: v.ThumbnailImageID}
			if idx := len(values); idx < len(product.Variants) {
				nv.ParentID = product.Variants[idx].ID
			}
			values = append(values, nv)
		}

		if len(values) != len(product.Variants) {
			s.logger.Warn("Variant value count does not match variant count; positional pairing may be wrong",
				zap.String("ikas_product_id", product.IkasProductID),
				zap.String("variant_type_id", pvt.VariantTypeID),
				zap.Int("values", len(values)),
				zap.Int("variants", len(product.Variants)))
		}

		out = append(out, NormalizedVariantType{
			VariantTypeID: vt.ID,
			Name:          vt.Name,
			SelectionType: vt.SelectionType,
			Order:         pvt.Order,
			Values:        values,
		})
	}
	return out, nil
}

func (s *CatalogService) variantType(ctx context.Context, id string) (*ikas.VariantType, error) {
	if s.cache != nil {
		if vt, ok := s.cache.Get(ctx, id); ok {
			return vt, nil
		}
	}
	vt, err := s.gateway.GetVariantType(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, vt); err != nil {
			s.logger.Debug("Failed to cache variant type", zap.String("id", id), zap.Error(err))
		}
	}
	return vt, nil
}

// Trending samples limit random products and decorates them with a
// placeholder rating. It is not a ranking.
func (s *CatalogService) Trending(ctx context.Context, limit int) ([]TrendingProduct, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Trending")
	defer span.End()

	if limit <= 0 || limit > 50 {
		limit = 10
	}
	products, err := s.store.RandomProducts(ctx, limit)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	out := make([]TrendingProduct, len(products))
	for i := range products {
		out[i] = TrendingProduct{
			ProductView: toView(&products[i]),
			Rating:      math.Round((3.5+rand.Float64()*1.5)*10) / 10,
			ReviewCount: 10 + rand.Intn(491),
		}
	}
	return out, nil
}

func (s *CatalogService) Favorites(ctx context.Context, userID uuid.UUID) ([]ProductView, error) {
	products, err := s.store.ListFavoriteProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, len(products))
	for i := range products {
		views[i] = toView(&products[i])
		views[i].IsFavorite = true
	}
	return views, nil
}

func (s *CatalogService) RecentlyViewed(ctx context.Context, userID uuid.UUID) ([]ProductView, error) {
	products, err := s.store.RecentlyViewedProducts(ctx, userID, s.listLimit)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, len(products))
	for i := range products {
		views[i] = toView(&products[i])
	}
	return views, nil
}

// Brands are read live from the commerce platform.
func (s *CatalogService) Brands(ctx context.Context) ([]ikas.Brand, error) {
	brands, err := s.gateway.ListBrands(ctx)
	if err != nil {
		return nil, upstream("failed to list brands", err)
	}
	return brands, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]ikas.Category, error) {
	categories, err := s.gateway.ListCategories(ctx)
	if err != nil {
		return nil, upstream("failed to list categories", err)
	}
	return categories, nil
}

func (s *CatalogService) favorites(ctx context.Context, viewer *uuid.UUID, products []models.Product) (map[string]bool, error) {
	if viewer == nil || len(products) == 0 {
		return map[string]bool{}, nil
	}
	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID.String()
	}
	return s.store.FavoritedProductIDs(ctx, *viewer, ids)
}

// findProduct accepts a local uuid or an ikas product id.
func findProduct(ctx context.Context, r ProductReader, id string) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	if local, parseErr := uuid.Parse(id); parseErr == nil {
		product, err = r.GetProductByID(ctx, local)
		if errors.Is(err, store.ErrNotFound) {
			// ikas ids are uuids too
			product, err = r.GetProductByIkasID(ctx, id)
		}
	} else {
		product, err = r.GetProductByIkasID(ctx, id)
	}
	if err != nil {
		return nil, storeErr(err, "", "product not found")
	}
	return product, nil
}

func toView(p *models.Product) ProductView {
	view := ProductView{
		ID:                  p.ID,
		IkasProductID:       p.IkasProductID,
		Name:                p.Name,
		Description:         p.Description,
		Brand:               p.Brand,
		CategoryIDs:         p.CategoryIDs,
		ProductVariantTypes: p.VariantTypes,
		Variants:            make([]VariantView, len(p.Variants)),
	}
	if view.CategoryIDs == nil {
		view.CategoryIDs = []string{}
	}
	for i, v := range p.Variants {
		view.Variants[i] = toVariantView(v)
	}
	if dv, ok := p.Variants.DisplayVariant(); ok {
		vv := toVariantView(dv)
		view.DisplayVariant = &vv
	}
	return view
}

func toVariantView(v models.Variant) VariantView {
	images := v.Images
	if images == nil {
		images = []models.VariantImage{}
	}
	return VariantView{
		ID:              v.ID,
		SKU:             v.SKU,
		IsActive:        v.IsActive,
		Weight:          v.Weight,
		Images:          images,
		Prices:          []ikas.VariantPrice{{SellPrice: v.Price, DiscountPrice: v.DiscountPrice}},
		VariantValueIDs: v.VariantValues,
	}
}
