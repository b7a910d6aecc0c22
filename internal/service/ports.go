package service

import (
	"context"
	"time"

	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/payment"

	"github.com/google/uuid"
)

// CommerceGateway is the subset of the commerce platform API the services use.
type CommerceGateway interface {
	ListProducts(ctx context.Context, page, limit int) (*ikas.ProductPage, error)
	ListOrders(ctx context.Context, page, limit int) (*ikas.OrderPage, error)
	GetVariantType(ctx context.Context, id string) (*ikas.VariantType, error)
	ListBrands(ctx context.Context) ([]ikas.Brand, error)
	ListCategories(ctx context.Context) ([]ikas.Category, error)
	CreateOrder(ctx context.Context, input ikas.CreateOrderInput) (*ikas.CreatedOrder, error)
	RefundOrder(ctx context.Context, input ikas.RefundInput) error
	SaveCustomer(ctx context.Context, input ikas.CustomerInput) (*ikas.Customer, error)
	CustomerLogin(ctx context.Context, email, password string) (*ikas.CustomerLoginResult, error)
	Me(ctx context.Context, customerToken string) (*ikas.Customer, error)
	ListWebhooks(ctx context.Context) ([]ikas.Webhook, error)
	DeleteWebhooks(ctx context.Context, scopes []string) error
}

// PaymentGateway renders hosted 3D forms, verifies callbacks and refunds sales.
type PaymentGateway interface {
	ThreeDForm(req payment.FormRequest) (string, error)
	VerifyCallback(r payment.CallbackResult) (*payment.CallbackHash, error)
	Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error)
}

// VariantTypeCache memoizes variant type catalogs. Optional.
type VariantTypeCache interface {
	Get(ctx context.Context, id string) (*ikas.VariantType, bool)
	Set(ctx context.Context, vt *ikas.VariantType) error
}

type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderMirrorFailed(ctx context.Context, event *models.OrderMirrorFailedEvent) error
	PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishCatalogSynced(ctx context.Context, event *models.CatalogSyncedEvent) error
	PublishCustomerWebhook(ctx context.Context, event *models.CustomerWebhookEvent) error
}

type ProductReader interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductByIkasID(ctx context.Context, ikasProductID string) (*models.Product, error)
}

type CatalogStore interface {
	ProductReader
	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	RandomProducts(ctx context.Context, limit int) ([]models.Product, error)
	FavoritedProductIDs(ctx context.Context, userID uuid.UUID, productIDs []string) (map[string]bool, error)
	ListFavoriteProducts(ctx context.Context, userID uuid.UUID) ([]models.Product, error)
	RecordProductView(ctx context.Context, userID, productID uuid.UUID) error
	RecentlyViewedProducts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Product, error)
}

type SyncStore interface {
	UpsertProduct(ctx context.Context, p *models.Product) (bool, error)
	UpsertOrderByIkasID(ctx context.Context, o *models.Order) (bool, error)
	FindUserByIkasCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

type PaymentStore interface {
	CreatePendingOrder(ctx context.Context, p *models.PendingOrder) error
	ClaimPendingOrder(ctx context.Context, invoiceID string) (*models.PendingOrder, error)
	CompletePendingOrder(ctx context.Context, invoiceID string) error
	ReleasePendingOrder(ctx context.Context, invoiceID string) error
	FailPendingOrder(ctx context.Context, invoiceID, reason string) error
	FailClaimedPendingOrder(ctx context.Context, invoiceID, reason string) error
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByIkasID(ctx context.Context, ikasOrderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	AttachIkasOrder(ctx context.Context, id uuid.UUID, ikasOrderID, orderNumber, status string) error
	MarkOrderRefunded(ctx context.Context, id uuid.UUID, info models.RefundInfo) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetIkasUserByID(ctx context.Context, id uuid.UUID) (*models.IkasUser, error)
}

type IdentityStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	LinkIkasUser(ctx context.Context, userID, ikasUserID uuid.UUID) error
	UpsertIkasUser(ctx context.Context, iu *models.IkasUser) error
	GetUserProfile(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.UserProfile, error)
	ListFollowers(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error)
	ListFollowings(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error)
}

type SocialStore interface {
	ProductReader
	AddFavorite(ctx context.Context, userID uuid.UUID, productID string) error
	RemoveFavorite(ctx context.Context, userID uuid.UUID, productID string) error
	FollowUser(ctx context.Context, followerID, followingID uuid.UUID) error
	UnfollowUser(ctx context.Context, followerID, followingID uuid.UUID) error
	UpsertBrand(ctx context.Context, b *models.Brand) error
	GetBrandByIkasID(ctx context.Context, ikasID string) (*models.Brand, error)
	FollowBrand(ctx context.Context, userID, brandID uuid.UUID) error
	UnfollowBrand(ctx context.Context, userID, brandID uuid.UUID) error
	ListFollowedBrands(ctx context.Context, userID uuid.UUID) ([]models.Brand, error)
	CreateVideo(ctx context.Context, v *models.Video) error
	GetFeedVideo(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.FeedVideo, error)
	ListFeed(ctx context.Context, viewer *uuid.UUID, limit, offset int) ([]models.FeedVideo, error)
	ListUserVideos(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.FeedVideo, error)
	IncrementVideoViews(ctx context.Context, id uuid.UUID) error
	DeleteVideo(ctx context.Context, id, userID uuid.UUID) error
	LikeVideo(ctx context.Context, userID, videoID uuid.UUID) error
	UnlikeVideo(ctx context.Context, userID, videoID uuid.UUID) error
	AddComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, videoID uuid.UUID, limit, offset int) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id, userID uuid.UUID) error
	CreateReport(ctx context.Context, r *models.Report) error
}

type SearchStore interface {
	SearchProducts(ctx context.Context, q string, limit int) ([]models.Product, error)
	SearchVideos(ctx context.Context, q string, limit int) ([]models.Video, error)
	SearchUsers(ctx context.Context, q string, limit int) ([]models.User, error)
	SearchBrands(ctx context.Context, q string, limit int) ([]models.Brand, error)
}

type WebhookStore interface {
	UpsertIkasUser(ctx context.Context, iu *models.IkasUser) error
}

// Deduplicator claims a key once within ttl. A released key can be claimed
// again. Optional.
type Deduplicator interface {
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}
