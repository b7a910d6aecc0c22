package service

import (
	"context"
	"strings"

	"tnf-api/internal/models"
	"tnf-api/internal/util"

	"golang.org/x/sync/errgroup"
)

// Search categories. An empty category searches all of them.
const (
	SearchProducts = "products"
	SearchVideos   = "videos"
	SearchUsers    = "users"
	SearchBrands   = "brands"
)

const searchLimit = 20

type SearchResults struct {
	Products []ProductView  `json:"products,omitempty"`
	Videos   []models.Video `json:"videos,omitempty"`
	Users    []models.User  `json:"users,omitempty"`
	Brands   []models.Brand `json:"brands,omitempty"`
}

type SearchService struct {
	store SearchStore
	limit int
}

func NewSearchService(store SearchStore) *SearchService {
	return &SearchService{store: store, limit: searchLimit}
}

// Search runs a case-insensitive substring match over one or all
// categories. All categories are queried concurrently.
func (s *SearchService) Search(ctx context.Context, q, category string) (*SearchResults, error) {
	ctx, span := util.StartSpan(ctx, "SearchService.Search")
	defer span.End()

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, util.RecordError(span, invalid("search query is required"))
	}

	var run []string
	switch category {
	case "":
		run = []string{SearchProducts, SearchVideos, SearchUsers, SearchBrands}
	case SearchProducts, SearchVideos, SearchUsers, SearchBrands:
		run = []string{category}
	default:
		return nil, util.RecordError(span, invalid("unknown search category %q", category))
	}

	results := &SearchResults{}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range run {
		c := c
		g.Go(func() error {
			return s.searchOne(gctx, c, q, results)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, util.RecordError(span, err)
	}
	return results, nil
}

// searchOne fills exactly one field of results.
func (s *SearchService) searchOne(ctx context.Context, category, q string, results *SearchResults) error {
	switch category {
	case SearchProducts:
		products, err := s.store.SearchProducts(ctx, q, s.limit)
		if err != nil {
			return err
		}
		views := make([]ProductView, len(products))
		for i := range products {
			views[i] = toView(&products[i])
		}
		results.Products = views
	case SearchVideos:
		videos, err := s.store.SearchVideos(ctx, q, s.limit)
		if err != nil {
			return err
		}
		results.Videos = videos
	case SearchUsers:
		users, err := s.store.SearchUsers(ctx, q, s.limit)
		if err != nil {
			return err
		}
		results.Users = users
	case SearchBrands:
		brands, err := s.store.SearchBrands(ctx, q, s.limit)
		if err != nil {
			return err
		}
		results.Brands = brands
	}
	return nil
}
