package api

import (
	"context"

	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/payment"
	"tnf-api/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The handler depends on these narrow views of the services so that routes
// can be tested without storage.

type IdentityAPI interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*service.Session, error)
	Login(ctx context.Context, req *service.LoginRequest) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	Profile(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) (*models.UserProfile, error)
	Followers(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error)
	Followings(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error)
}

type CatalogAPI interface {
	List(ctx context.Context, viewer *uuid.UUID, page int) ([]service.ProductView, error)
	GetByID(ctx context.Context, id string, viewer *uuid.UUID) (*service.ProductView, error)
	Trending(ctx context.Context, limit int) ([]service.TrendingProduct, error)
	Favorites(ctx context.Context, userID uuid.UUID) ([]service.ProductView, error)
	RecentlyViewed(ctx context.Context, userID uuid.UUID) ([]service.ProductView, error)
	Brands(ctx context.Context) ([]ikas.Brand, error)
	Categories(ctx context.Context) ([]ikas.Category, error)
}

type SocialAPI interface {
	AddFavorite(ctx context.Context, userID uuid.UUID, productID string) error
	RemoveFavorite(ctx context.Context, userID uuid.UUID, productID string) error
	FollowUser(ctx context.Context, followerID, followingID uuid.UUID) error
	UnfollowUser(ctx context.Context, followerID, followingID uuid.UUID) error
	FollowBrand(ctx context.Context, userID uuid.UUID, ikasBrandID string) error
	UnfollowBrand(ctx context.Context, userID uuid.UUID, ikasBrandID string) error
	FollowedBrands(ctx context.Context, userID uuid.UUID) ([]models.Brand, error)
	CreateVideo(ctx context.Context, userID uuid.UUID, req *service.CreateVideoRequest) (*models.Video, error)
	GetVideo(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.FeedVideo, error)
	Feed(ctx context.Context, viewer *uuid.UUID, page, limit int) ([]models.FeedVideo, error)
	UserVideos(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.FeedVideo, error)
	DeleteVideo(ctx context.Context, userID, videoID uuid.UUID) error
	LikeVideo(ctx context.Context, userID, videoID uuid.UUID) error
	UnlikeVideo(ctx context.Context, userID, videoID uuid.UUID) error
	AddComment(ctx context.Context, userID, videoID uuid.UUID, text string) (*models.Comment, error)
	Comments(ctx context.Context, videoID uuid.UUID, page, limit int) ([]models.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error
	ReportVideo(ctx context.Context, userID, videoID uuid.UUID, reason string) (*models.Report, error)
}

type SearchAPI interface {
	Search(ctx context.Context, q, category string) (*service.SearchResults, error)
}

type PaymentAPI interface {
	Initiate(ctx context.Context, req *service.InitiatePaymentRequest, userID *uuid.UUID) (string, error)
	HandleCallback(ctx context.Context, cb payment.CallbackResult) (*models.Order, error)
	Refund(ctx context.Context, ikasOrderID string, amount *decimal.Decimal, reason string) (*models.Order, error)
	Orders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	Order(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
}

type WebhookAPI interface {
	Receive(ctx context.Context, body []byte) error
	ListWebhooks(ctx context.Context) ([]ikas.Webhook, error)
	DeleteWebhooks(ctx context.Context, scopes []string) error
}

// SyncTrigger runs a sync job on demand.
type SyncTrigger interface {
	RunNow(ctx context.Context, job string) (*service.SyncReport, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the routes call.
type Services struct {
	Identity IdentityAPI
	Catalog  CatalogAPI
	Social   SocialAPI
	Search   SearchAPI
	Payments PaymentAPI
	Webhooks WebhookAPI
	Sync     SyncTrigger
}
