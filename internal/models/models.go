package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts leave the API as JSON numbers, matching the commerce platform's payloads.
	decimal.MarshalJSONWithoutQuotes = true
}

// Ref is a denormalized {id, name} pair (brand, country, city, district).
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is the local cache of a commerce catalog item, keyed by IkasProductID.
type Product struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	IkasProductID string              `db:"ikas_product_id" json:"ikasProductId"`
	Name          string              `db:"name" json:"name"`
	Description   string              `db:"description" json:"description"`
	Brand         BrandRef            `db:"brand" json:"brand"`
	CategoryIDs   pq.StringArray      `db:"category_ids" json:"categoryIds"`
	VariantTypes  ProductVariantTypes `db:"variant_types" json:"productVariantTypes"`
	Variants      Variants            `db:"variants" json:"variants"`
	SyncedAt      time.Time           `db:"synced_at" json:"syncedAt"`
	CreatedAt     time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updatedAt"`
}

type BrandRef Ref

func (b BrandRef) Value() (driver.Value, error) { return marshalJSONB(b) }
func (b *BrandRef) Scan(src interface{}) error { return unmarshalJSONB(src, b) }

// Variant is one purchasable SKU of a product.
type Variant struct {
	ID            string            `json:"id"`
	SKU           string            `json:"sku"`
	IsActive      bool              `json:"isActive"`
	Price         float64           `json:"price"`
	DiscountPrice *float64          `json:"discountPrice,omitempty"`
	Weight        float64           `json:"weight"`
	Images        []VariantImage    `json:"images"`
	VariantValues []VariantValueRef `json:"variantValueIds"`
}

type VariantImage struct {
	ImageID string `json:"imageId"`
	IsMain  bool   `json:"isMain"`
	Order   int    `json:"order"`
}

type VariantValueRef struct {
	VariantTypeID  string `json:"variantTypeId"`
	VariantValueID string `json:"variantValueId"`
}

type Variants []Variant

func (v Variants) Value() (driver.Value, error) { return marshalJSONB(v) }
func (v *Variants) Scan(src interface{}) error { return unmarshalJSONB(src, v) }

// DisplayVariant returns the first active variant, falling back to the
// first variant. ok is false only for an empty list.
func (v Variants) DisplayVariant() (Variant, bool) {
	if len(v) == 0 {
		return Variant{}, false
	}
	for _, variant := range v {
		if variant.IsActive {
			return variant, true
		}
	}
	return v[0], true
}

// ProductVariantType lists which values of a remote variant type (e.g. Color)
// are present on a specific product.
type ProductVariantType struct {
	VariantTypeID   string   `json:"variantTypeId"`
	VariantValueIDs []string `json:"variantValueIds"`
	Order           int      `json:"order"`
}

type ProductVariantTypes []ProductVariantType

func (p ProductVariantTypes) Value() (driver.Value, error) { return marshalJSONB(p) }
func (p *ProductVariantTypes) Scan(src interface{}) error { return unmarshalJSONB(src, p) }

// Order statuses. Remote orders keep the commerce platform's own status
// strings; these are the ones this service writes.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusFailed     = "failed"
	OrderStatusRefunded   = "REFUNDED"
)

// Order is the local mirror of a committed commerce order.
type Order struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	IkasOrderID     *string         `db:"ikas_order_id" json:"ikasOrderId,omitempty"`
	OrderNumber     string          `db:"order_number" json:"orderNumber"`
	InvoiceID       *string         `db:"invoice_id" json:"invoiceId,omitempty"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Currency        string          `db:"currency" json:"currency"`
	Items           OrderItems      `db:"items" json:"items"`
	ShippingAddress Address         `db:"shipping_address" json:"shippingAddress"`
	ShippingMethod  ShippingMethod  `db:"shipping_method" json:"shippingMethod"`
	Status          string          `db:"status" json:"status"`
	PaymentID       string          `db:"payment_id" json:"paymentId"`
	IsPaid          bool            `db:"is_paid" json:"isPaid"`
	PaidAt          *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	UserID          *uuid.UUID      `db:"user_id" json:"userId,omitempty"`
	RefundInfo      *RefundInfo     `db:"refund_info" json:"refundInfo,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
}

type OrderItems []OrderItem

func (o OrderItems) Value() (driver.Value, error) { return marshalJSONB(o) }
func (o *OrderItems) Scan(src interface{}) error { return unmarshalJSONB(src, o) }

// Total sums price*quantity over all items.
func (o OrderItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Address is a shipping or billing address snapshot.
type Address struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	PostalCode   string `json:"postalCode"`
	Country      Ref    `json:"country"`
	City         Ref    `json:"city"`
	District     Ref    `json:"district"`
}

func (a Address) Value() (driver.Value, error) { return marshalJSONB(a) }
func (a *Address) Scan(src interface{}) error { return unmarshalJSONB(src, a) }

const DefaultShippingTitle = "Standart Kargo"

type ShippingMethod struct {
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	IsFree bool            `json:"isFree"`
}

// DefaultShippingMethod is free standard shipping.
func DefaultShippingMethod() ShippingMethod {
	return ShippingMethod{Title: DefaultShippingTitle, Price: decimal.Zero, IsFree: true}
}

func (s ShippingMethod) Value() (driver.Value, error) { return marshalJSONB(s) }
func (s *ShippingMethod) Scan(src interface{}) error { return unmarshalJSONB(src, s) }

type RefundInfo struct {
	Amount      decimal.Decimal `json:"amount"`
	OrderNo     string          `json:"orderNo"`
	InvoiceID   string          `json:"invoiceId"`
	ReferenceNo string          `json:"referenceNo"`
	RefundedAt  time.Time       `json:"refundedAt"`
}

func (r RefundInfo) Value() (driver.Value, error) { return marshalJSONB(r) }
func (r *RefundInfo) Scan(src interface{}) error { return unmarshalJSONB(src, r) }

// PendingOrder statuses
const (
	PendingStatusPending    = "pending"
	PendingStatusProcessing = "processing"
	PendingStatusCompleted  = "completed"
	PendingStatusFailed     = "failed"
)

// PendingOrder survives the redirect to the hosted payment page. One per invoice id.
type PendingOrder struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	InvoiceID       string          `db:"invoice_id" json:"invoiceId"`
	UserID          *uuid.UUID      `db:"user_id" json:"userId,omitempty"`
	Items           OrderItems      `db:"items" json:"items"`
	ShippingAddress Address         `db:"shipping_address" json:"shippingAddress"`
	ShippingMethod  ShippingMethod  `db:"shipping_method" json:"shippingMethod"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Currency        string          `db:"currency" json:"currency"`
	Status          string          `db:"status" json:"status"`
	FailureReason   string          `db:"failure_reason" json:"failureReason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// User is a local application account.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Bio          string     `db:"bio" json:"bio,omitempty"`
	AvatarURL    string     `db:"avatar_url" json:"avatarUrl,omitempty"`
	IkasUserID   *uuid.UUID `db:"ikas_user_id" json:"ikasUserId,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// IkasUser is the shadow of a commerce platform customer.
type IkasUser struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	IkasCustomerID string            `db:"ikas_customer_id" json:"ikasCustomerId"`
	Email          string            `db:"email" json:"email"`
	FirstName      string            `db:"first_name" json:"firstName"`
	LastName       string            `db:"last_name" json:"lastName"`
	Phone          string            `db:"phone" json:"phone,omitempty"`
	Addresses      CustomerAddresses `db:"addresses" json:"addresses"`
	AccessToken    string            `db:"access_token" json:"-"`
	TokenExpiry    *time.Time        `db:"token_expiry" json:"-"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

type CustomerAddresses []Address

func (c CustomerAddresses) Value() (driver.Value, error) { return marshalJSONB(c) }
func (c *CustomerAddresses) Scan(src interface{}) error { return unmarshalJSONB(src, c) }

// UserProfile is a user with relationship counts.
type UserProfile struct {
	User
	FollowerCount  int  `db:"follower_count" json:"followerCount"`
	FollowingCount int  `db:"following_count" json:"followingCount"`
	VideoCount     int  `db:"video_count" json:"videoCount"`
	IsFollowing    bool `db:"is_following" json:"isFollowing"`
}

type Brand struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	IkasID          string         `db:"ikas_id" json:"ikasId"`
	Name            string         `db:"name" json:"name"`
	ImageID         string         `db:"image_id" json:"imageId,omitempty"`
	Description     string         `db:"description" json:"description,omitempty"`
	SalesChannelIDs pq.StringArray `db:"sales_channel_ids" json:"salesChannelIds"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

type BrandFollower struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	BrandID   uuid.UUID `db:"brand_id" json:"brandId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Video struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	UserID       uuid.UUID      `db:"user_id" json:"userId"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	VideoURL     string         `db:"video_url" json:"videoUrl"`
	ThumbnailURL string         `db:"thumbnail_url" json:"thumbnailUrl"`
	ProductIDs   pq.StringArray `db:"product_ids" json:"productIds"`
	ViewCount    int64          `db:"view_count" json:"viewCount"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// FeedVideo is a video decorated for a viewer.
type FeedVideo struct {
	Video
	Username     string `db:"username" json:"username"`
	LikeCount    int64  `db:"like_count" json:"likeCount"`
	CommentCount int64  `db:"comment_count" json:"commentCount"`
	IsLiked      bool   `db:"is_liked" json:"isLiked"`
}

type Comment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	VideoID   uuid.UUID `db:"video_id" json:"videoId"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	Username  string    `db:"username" json:"username"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type LikeVideo struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	VideoID   uuid.UUID `db:"video_id" json:"videoId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Favorite struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	ProductID string    `db:"product_id" json:"productId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type FollowersFollowings struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FollowerID  uuid.UUID `db:"follower_id" json:"followerId"`
	FollowingID uuid.UUID `db:"following_id" json:"followingId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type Report struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ReporterID uuid.UUID `db:"reporter_id" json:"reporterId"`
	VideoID    uuid.UUID `db:"video_id" json:"videoId"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type UserProductView struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	ProductID uuid.UUID `db:"product_id" json:"productId"`
	ViewCount int       `db:"view_count" json:"viewCount"`
	ViewedAt  time.Time `db:"viewed_at" json:"viewedAt"`
}

func marshalJSONB(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb: %w", err)
	}
	return b, nil
}

func unmarshalJSONB(src interface{}, dst interface{}) error {
	var data []byte
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
