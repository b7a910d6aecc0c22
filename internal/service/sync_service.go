package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tnf-api/internal/broker"
	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/store"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	JobProducts = "products"
	JobOrders   = "orders"
)

// SyncReport summarizes one sync run.
type SyncReport struct {
	Job      string        `json:"job"`
	Pages    int           `json:"pages"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Duration time.Duration `json:"duration"`
}

// SyncService pages through the commerce platform and upserts products and
// orders by their natural keys.
type SyncService struct {
	store          SyncStore
	gateway        CommerceGateway
	publisher      EventPublisher
	pageSize       int
	pagesPerSecond float64
	logger         *zap.Logger
}

func NewSyncService(store SyncStore, gateway CommerceGateway, publisher EventPublisher, pageSize int, pagesPerSecond float64) *SyncService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &SyncService{
		store:          store,
		gateway:        gateway,
		publisher:      publisher,
		pageSize:       pageSize,
		pagesPerSecond: pagesPerSecond,
		logger:         util.Named("sync"),
	}
}

// Run dispatches a job by name.
func (s *SyncService) Run(ctx context.Context, job string) (*SyncReport, error) {
	switch job {
	case JobProducts:
		return s.SyncProducts(ctx)
	case JobOrders:
		return s.SyncOrders(ctx)
	}
	return nil, invalid("unknown sync job %q", job)
}

// SyncProducts upserts every remote product. A failure aborts the run; the
// next run starts again from page one.
func (s *SyncService) SyncProducts(ctx context.Context) (*SyncReport, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncProducts")
	defer span.End()

	report, err := s.paginate(ctx, JobProducts, func(ctx context.Context, page int) (bool, int, int, error) {
		remote, err := s.gateway.ListProducts(ctx, page, s.pageSize)
		if err != nil {
			return false, 0, 0, fmt.Errorf("failed to fetch product page %d: %w", page, err)
		}
		inserted, updated := 0, 0
		for i := range remote.Data {
			p := MapProduct(&remote.Data[i])
			created, err := s.store.UpsertProduct(ctx, &p)
			if err != nil {
				return false, inserted, updated, err
			}
			if created {
				inserted++
			} else {
				updated++
			}
		}
		return remote.HasNext, inserted, updated, nil
	})
	return report, util.RecordError(span, err)
}

// SyncOrders upserts every remote order, attaching the local owner when the
// customer is known.
func (s *SyncService) SyncOrders(ctx context.Context) (*SyncReport, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncOrders")
	defer span.End()

	report, err := s.paginate(ctx, JobOrders, func(ctx context.Context, page int) (bool, int, int, error) {
		remote, err := s.gateway.ListOrders(ctx, page, s.pageSize)
		if err != nil {
			return false, 0, 0, fmt.Errorf("failed to fetch order page %d: %w", page, err)
		}
		inserted, updated := 0, 0
		for i := range remote.Data {
			o := MapOrder(&remote.Data[i], s.ownerOf(ctx, &remote.Data[i]))
			created, err := s.store.UpsertOrderByIkasID(ctx, &o)
			if err != nil {
				return false, inserted, updated, err
			}
			if created {
				inserted++
			} else {
				updated++
			}
		}
		return remote.HasNext, inserted, updated, nil
	})
	return report, util.RecordError(span, err)
}

type pageFunc func(ctx context.Context, page int) (hasNext bool, inserted, updated int, err error)

func (s *SyncService) paginate(ctx context.Context, job string, fetch pageFunc) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{Job: job}

	limit := rate.Inf
	if s.pagesPerSecond > 0 {
		limit = rate.Limit(s.pagesPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	s.logger.Info("Sync started", zap.String("job", job))

	var runErr error
	for page := 1; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		hasNext, inserted, updated, err := fetch(ctx, page)
		report.Pages++
		report.Inserted += inserted
		report.Updated += updated
		util.SyncPagesTotal.WithLabelValues(job).Inc()
		util.SyncItemsUpsertedTotal.WithLabelValues(job).Add(float64(inserted + updated))

		if err != nil {
			runErr = err
			break
		}
		if !hasNext {
			break
		}
	}

	report.Duration = time.Since(start)
	util.SyncRunDuration.WithLabelValues(job).Observe(report.Duration.Seconds())

	if runErr != nil {
		util.SyncRunsTotal.WithLabelValues(job, "error").Inc()
		s.logger.Error("Sync aborted",
			zap.String("job", job),
			zap.Int("pages", report.Pages),
			zap.Error(runErr))
		return report, fmt.Errorf("%s sync failed: %w", job, runErr)
	}

	util.SyncRunsTotal.WithLabelValues(job, "success").Inc()
	s.logger.Info("Sync finished",
		zap.String("job", job),
		zap.Int("pages", report.Pages),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Duration("duration", report.Duration))

	if s.publisher != nil {
		event := &models.CatalogSyncedEvent{
			BaseEvent: broker.NewBaseEvent(models.EventTypeCatalogSynced),
			Job:       job,
			Pages:     report.Pages,
			Upserted:  report.Inserted + report.Updated,
		}
		if err := s.publisher.PublishCatalogSynced(ctx, event); err != nil {
			s.logger.Warn("Failed to publish sync event", zap.String("job", job), zap.Error(err))
		}
	}
	return report, nil
}

// ownerOf looks up the local user for a remote order's customer. Unknown
// customers and lookup failures yield nil.
func (s *SyncService) ownerOf(ctx context.Context, o *ikas.Order) *uuid.UUID {
	customerID := o.CustomerID
	if customerID == "" && o.Customer != nil {
		customerID = o.Customer.ID
	}
	if customerID == "" {
		return nil
	}
	user, err := s.store.FindUserByIkasCustomerID(ctx, customerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Order owner lookup failed",
				zap.String("ikas_order_id", o.ID),
				zap.String("customer_id", customerID),
				zap.Error(err))
		}
		return nil
	}
	return &user.ID
}

// MapProduct flattens a remote product into the local shape. Price and
// discount price come from the first price entry.
func MapProduct(p *ikas.Product) models.Product {
	brand := models.BrandRef{ID: p.BrandID}
	if p.Brand != nil {
		brand = models.BrandRef{ID: p.Brand.ID, Name: p.Brand.Name}
	}

	variantTypes := make(models.ProductVariantTypes, 0, len(p.ProductVariantTypes))
	for _, vt := range p.ProductVariantTypes {
		variantTypes = append(variantTypes, models.ProductVariantType{
			VariantTypeID:   vt.VariantTypeID,
			VariantValueIDs: vt.VariantValueIDs,
			Order:           vt.Order,
		})
	}

	variants := make(models.Variants, 0, len(p.Variants))
	for _, v := range p.Variants {
		variant := models.Variant{
			ID:            v.ID,
			SKU:           v.SKU,
			IsActive:      v.IsActive,
			Weight:        v.Weight,
			Images:        make([]models.VariantImage, 0, len(v.Images)),
			VariantValues: make([]models.VariantValueRef, 0, len(v.VariantValueIDs)),
		}
		if len(v.Prices) > 0 {
			variant.Price = v.Prices[0].SellPrice
			variant.DiscountPrice = v.Prices[0].DiscountPrice
		}
		for _, img := range v.Images {
			variant.Images = append(variant.Images, models.VariantImage{ImageID: img.ImageID, IsMain: img.IsMain, Order: img.Order})
		}
		for _, ref := range v.VariantValueIDs {
			variant.VariantValues = append(variant.VariantValues, models.VariantValueRef{
				VariantTypeID:  ref.VariantTypeID,
				VariantValueID: ref.VariantValueID,
			})
		}
		variants = append(variants, variant)
	}

	categories := p.CategoryIDs
	if categories == nil {
		categories = []string{}
	}

	return models.Product{
		IkasProductID: p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Brand:         brand,
		CategoryIDs:   categories,
		VariantTypes:  variantTypes,
		Variants:      variants,
	}
}

// MapOrder converts a remote order. The shipping method comes from the first
// shipping line, defaulting to free standard shipping.
func MapOrder(o *ikas.Order, owner *uuid.UUID) models.Order {
	ikasID := o.ID
	items := make(models.OrderItems, 0, len(o.OrderLineItems))
	for _, line := range o.OrderLineItems {
		price := line.FinalPrice
		if price == 0 {
			price = line.Price
		}
		items = append(items, models.OrderItem{
			ProductID: line.Variant.ProductID,
			VariantID: line.Variant.ID,
			Quantity:  line.Quantity,
			Price:     decimal.NewFromFloat(price),
			Name:      line.Variant.Name,
			Image:     line.Variant.MainImageID,
		})
	}

	shipping := models.DefaultShippingMethod()
	if len(o.ShippingLines) > 0 {
		first := o.ShippingLines[0]
		if first.Title != "" {
			shipping.Title = first.Title
		}
		shipping.Price = decimal.NewFromFloat(first.Price)
		shipping.IsFree = first.Price == 0
	}

	var address models.Address
	if o.ShippingAddress != nil {
		address = fromIkasAddress(o.ShippingAddress)
	}
	if o.Customer != nil && address.Email == "" {
		address.Email = o.Customer.Email
	}

	currency := o.CurrencyCode
	if currency == "" {
		currency = "TRY"
	}

	order := models.Order{
		IkasOrderID:     &ikasID,
		OrderNumber:     o.OrderNumber,
		TotalAmount:     decimal.NewFromFloat(o.TotalFinalPrice),
		Currency:        currency,
		Items:           items,
		ShippingAddress: address,
		ShippingMethod:  shipping,
		Status:          o.Status,
		IsPaid:          o.OrderPaymentStatus == "PAID",
		UserID:          owner,
	}
	if order.IsPaid && o.OrderedAt > 0 {
		paidAt := time.UnixMilli(o.OrderedAt).UTC()
		order.PaidAt = &paidAt
	}
	return order
}

func fromIkasAddress(a *ikas.Address) models.Address {
	return models.Address{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		PostalCode:   a.PostalCode,
		Country:      refOf(a.Country),
		City:         refOf(a.City),
		District:     refOf(a.District),
	}
}

func toIkasAddress(a models.Address) *ikas.Address {
	return &ikas.Address{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		PostalCode:   a.PostalCode,
		Country:      idNameOf(a.Country),
		City:         idNameOf(a.City),
		District:     idNameOf(a.District),
	}
}

func refOf(n *ikas.IDName) models.Ref {
	if n == nil {
		return models.Ref{}
	}
	return models.Ref{ID: n.ID, Name: n.Name}
}

func idNameOf(r models.Ref) *ikas.IDName {
	if r.ID == "" && r.Name == "" {
		return nil
	}
	return &ikas.IDName{ID: r.ID, Name: r.Name}
}
