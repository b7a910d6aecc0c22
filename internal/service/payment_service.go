package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tnf-api/internal/broker"
	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/payment"
	"tnf-api/internal/store"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const paymentGatewayName = "Sipay"

// PaymentConfig carries the storefront identifiers stamped on mirrored
// orders and the callback acceptance policy.
type PaymentConfig struct {
	Currency       string
	SalesChannelID string
	StorefrontID   string

	// AllowUnsignedCallback accepts callbacks that carry no hash_key.
	AllowUnsignedCallback bool
}

// PaymentService runs the 3D card payment pipeline:
// pending -> processing -> completed, or failed.
type PaymentService struct {
	store     PaymentStore
	payments  PaymentGateway
	commerce  CommerceGateway
	publisher EventPublisher
	cfg       PaymentConfig
	now       func() time.Time
	logger    *zap.Logger
}

func NewPaymentService(store PaymentStore, payments PaymentGateway, commerce CommerceGateway, publisher EventPublisher, cfg PaymentConfig) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "TRY"
	}
	return &PaymentService{
		store:     store,
		payments:  payments,
		commerce:  commerce,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    util.Named("payment"),
	}
}

type CartItem struct {
	ProductID string          `json:"productId" binding:"required"`
	VariantID string          `json:"variantId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
}

// InitiatePaymentRequest starts a card payment for a cart.
type InitiatePaymentRequest struct {
	InvoiceID       string                 `json:"invoiceId" binding:"required"`
	Items           []CartItem             `json:"items" binding:"required,min=1,dive"`
	ShippingAddress models.Address         `json:"shippingAddress"`
	ShippingMethod  *models.ShippingMethod `json:"shippingMethod,omitempty"`
	Card            payment.Card           `json:"card" binding:"required"`
	Description     string                 `json:"description"`
}

// Initiate stores the pending order and returns the self-submitting HTML
// form that posts the card straight to the payment gateway.
func (s *PaymentService) Initiate(ctx context.Context, req *InitiatePaymentRequest, userID *uuid.UUID) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initiate")
	defer span.End()

	if err := validateCart(req); err != nil {
		return "", util.RecordError(span, err)
	}

	items := make(models.OrderItems, len(req.Items))
	for i, item := range req.Items {
		items[i] = models.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      item.Name,
			Image:     item.Image,
		}
	}

	shipping := models.DefaultShippingMethod()
	if req.ShippingMethod != nil && req.ShippingMethod.Title != "" {
		shipping = *req.ShippingMethod
	}
	total := items.Total()
	if !shipping.IsFree {
		total = total.Add(shipping.Price)
	}

	pending := &models.PendingOrder{
		InvoiceID:       req.InvoiceID,
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  shipping,
		TotalAmount:     total,
		Currency:        s.cfg.Currency,
		Status:          models.PendingStatusPending,
	}
	if err := s.store.CreatePendingOrder(ctx, pending); err != nil {
		return "", util.RecordError(span, storeErr(err, "invoice id already used", ""))
	}

	formItems := make([]payment.FormItem, len(items))
	for i, item := range items {
		formItems[i] = payment.FormItem{
			Name:        item.Name,
			Price:       payment.FormatAmount(item.Price),
			Quantity:    item.Quantity,
			Description: item.Name,
		}
	}

	addr := req.ShippingAddress
	html, err := s.payments.ThreeDForm(payment.FormRequest{
		InvoiceID:   req.InvoiceID,
		Description: firstNonEmpty(req.Description, "Order "+req.InvoiceID),
		Total:       total,
		Items:       formItems,
		Card:        req.Card,
		Billing: payment.Billing{
			FirstName:    addr.FirstName,
			LastName:     addr.LastName,
			Email:        addr.Email,
			Phone:        addr.Phone,
			AddressLine1: addr.AddressLine1,
			AddressLine2: addr.AddressLine2,
			City:         addr.City.Name,
			State:        addr.District.Name,
			Country:      addr.Country.Name,
			PostalCode:   addr.PostalCode,
		},
	})
	if err != nil {
		_ = s.store.FailPendingOrder(ctx, req.InvoiceID, "form rendering failed")
		return "", util.RecordError(span, fmt.Errorf("failed to build payment form: %w", err))
	}

	util.PaymentInitiatedTotal.Inc()
	s.logger.Info("Payment initiated",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("total", total.StringFixed(2)))
	return html, nil
}

// HandleCallback settles a gateway callback. A success claims the pending
// order exactly once, commits the local order and mirrors it to the
// commerce platform. A replayed callback finds nothing to claim.
func (s *PaymentService) HandleCallback(ctx context.Context, cb payment.CallbackResult) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleCallback")
	defer span.End()

	if cb.InvoiceID == "" {
		util.PaymentCallbacksTotal.WithLabelValues("invalid").Inc()
		return nil, util.RecordError(span, invalid("callback without invoice id"))
	}

	var signed *payment.CallbackHash
	switch {
	case cb.HashKey != "":
		hash, err := s.payments.VerifyCallback(cb)
		if err != nil {
			util.PaymentCallbacksTotal.WithLabelValues("invalid_hash").Inc()
			s.logger.Warn("Callback hash rejected", zap.String("invoice_id", cb.InvoiceID), zap.Error(err))
			return nil, util.RecordError(span, &Error{Code: EINVALID, Message: "callback integrity check failed", Err: err})
		}
		signed = hash
	case s.cfg.AllowUnsignedCallback:
		s.logger.Warn("Accepting callback without hash_key", zap.String("invoice_id", cb.InvoiceID))
	default:
		util.PaymentCallbacksTotal.WithLabelValues("unsigned").Inc()
		s.logger.Warn("Callback without hash_key rejected", zap.String("invoice_id", cb.InvoiceID))
		return nil, util.RecordError(span, invalid("unsigned callback rejected"))
	}

	if !cb.Succeeded() {
		return nil, util.RecordError(span, s.failPayment(ctx, cb))
	}

	pending, err := s.store.ClaimPendingOrder(ctx, cb.InvoiceID)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("unclaimed").Inc()
		return nil, util.RecordError(span, storeErr(err, "", "pending order not found or already processed"))
	}

	if paid := paidAmount(cb, signed); !paid.Equal(pending.TotalAmount) {
		return nil, util.RecordError(span, s.rejectAmount(ctx, pending, paid))
	}

	invoiceID := pending.InvoiceID
	paidAt := s.now().UTC()
	order := &models.Order{
		InvoiceID:       &invoiceID,
		TotalAmount:     pending.TotalAmount,
		Currency:        pending.Currency,
		Items:           pending.Items,
		ShippingAddress: pending.ShippingAddress,
		ShippingMethod:  pending.ShippingMethod,
		Status:          models.OrderStatusProcessing,
		PaymentID:       firstNonEmpty(cb.OrderNo, cb.OrderID),
		IsPaid:          true,
		PaidAt:          &paidAt,
		UserID:          pending.UserID,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Paid callback could not be committed", zap.String("invoice_id", invoiceID), zap.Error(err))
		if rerr := s.store.ReleasePendingOrder(ctx, invoiceID); rerr != nil {
			s.logger.Error("Pending order left processing", zap.String("invoice_id", invoiceID), zap.Error(rerr))
		}
		return nil, util.RecordError(span, fmt.Errorf("failed to create order: %w", err))
	}
	util.OrdersCommittedTotal.Inc()
	util.PaymentCallbacksTotal.WithLabelValues("success").Inc()

	if err := s.mirror(ctx, order); errors.Is(err, store.ErrDuplicate) {
		s.logger.Error("Remote order already belongs to another paid order",
			zap.String("order_id", order.ID.String()),
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
	} else if err != nil {
		s.logger.Error("Order mirror failed; queued for retry",
			zap.String("order_id", order.ID.String()),
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		util.OrdersMirrorFailedTotal.Inc()
		s.publishMirrorFailed(ctx, order, err)
	}

	if err := s.store.CompletePendingOrder(ctx, invoiceID); err != nil {
		s.logger.Warn("Failed to complete pending order", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
	return order, nil
}

// RetryMirror pushes a paid order that never reached the commerce platform.
func (s *PaymentService) RetryMirror(ctx context.Context, orderID uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.RetryMirror")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return util.RecordError(span, storeErr(err, "", "order not found"))
	}
	if order.IkasOrderID != nil {
		return nil
	}
	if err := s.mirror(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return util.RecordError(span, &Error{Code: ECONFLICT, Message: "remote order already belongs to another paid order", Err: err})
		}
		util.OrdersMirrorFailedTotal.Inc()
		return util.RecordError(span, upstream("failed to mirror order", err))
	}
	return nil
}

// Refund refunds a paid order at the payment gateway, then on the commerce
// platform, then locally. A nil amount refunds the full total.
func (s *PaymentService) Refund(ctx context.Context, ikasOrderID string, amount *decimal.Decimal, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Refund")
	defer span.End()

	order, err := s.store.GetOrderByIkasID(ctx, ikasOrderID)
	if err != nil {
		return nil, util.RecordError(span, storeErr(err, "", "order not found"))
	}
	if order.Status == models.OrderStatusRefunded {
		return nil, util.RecordError(span, conflict("order already refunded"))
	}
	if order.InvoiceID == nil || !order.IsPaid {
		return nil, util.RecordError(span, invalid("order was not paid by card through this service"))
	}

	refundAmount := order.TotalAmount
	if amount != nil {
		if !amount.IsPositive() || amount.GreaterThan(order.TotalAmount) {
			return nil, util.RecordError(span, invalid("refund amount must be between 0 and %s", order.TotalAmount.StringFixed(2)))
		}
		refundAmount = *amount
	}

	result, err := s.payments.Refund(ctx, payment.RefundRequest{InvoiceID: *order.InvoiceID, Amount: refundAmount})
	if err != nil {
		util.RefundsTotal.WithLabelValues("gateway_error").Inc()
		return nil, util.RecordError(span, upstream("payment gateway refused the refund", err))
	}

	err = s.commerce.RefundOrder(ctx, ikas.RefundInput{OrderID: ikasOrderID, Reason: reason})
	if err != nil {
		util.RefundsTotal.WithLabelValues("commerce_error").Inc()
		s.logger.Error("Refund settled at payment gateway but not on commerce platform",
			zap.String("ikas_order_id", ikasOrderID),
			zap.String("invoice_id", *order.InvoiceID),
			zap.String("ref_no", result.RefNo),
			zap.Error(err))
		return nil, util.RecordError(span, upstream("commerce platform refund failed after payment refund", err))
	}

	info := models.RefundInfo{
		Amount:      refundAmount,
		OrderNo:     result.OrderNo,
		InvoiceID:   firstNonEmpty(result.InvoiceID, *order.InvoiceID),
		ReferenceNo: result.RefNo,
		RefundedAt:  s.now().UTC(),
	}
	if err := s.store.MarkOrderRefunded(ctx, order.ID, info); err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to mark order refunded: %w", err))
	}
	order.Status = models.OrderStatusRefunded
	order.RefundInfo = &info
	util.RefundsTotal.WithLabelValues("success").Inc()

	if s.publisher != nil {
		event := &models.OrderRefundedEvent{
			BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderRefunded),
			OrderID:     order.ID.String(),
			IkasOrderID: ikasOrderID,
			Amount:      refundAmount,
		}
		if err := s.publisher.PublishOrderRefunded(ctx, event); err != nil {
			s.logger.Warn("Failed to publish refund event", zap.Error(err))
		}
	}
	return order, nil
}

func (s *PaymentService) Orders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

// Order returns one of the user's orders.
func (s *PaymentService) Order(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "", "order not found")
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, notFound("order not found")
	}
	return order, nil
}

func (s *PaymentService) failPayment(ctx context.Context, cb payment.CallbackResult) error {
	reason := cb.FailureReason()
	util.PaymentCallbacksTotal.WithLabelValues("declined").Inc()

	if err := s.store.FailPendingOrder(ctx, cb.InvoiceID, reason); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("Failed to mark pending order failed", zap.String("invoice_id", cb.InvoiceID), zap.Error(err))
	}
	s.logger.Info("Payment declined",
		zap.String("invoice_id", cb.InvoiceID),
		zap.String("error_code", cb.ErrorCode),
		zap.String("reason", reason))

	if s.publisher != nil {
		event := &models.PaymentFailedEvent{
			BaseEvent: broker.NewBaseEvent(models.EventTypePaymentFailed),
			InvoiceID: cb.InvoiceID,
			ErrorCode: cb.ErrorCode,
			Reason:    reason,
		}
		if err := s.publisher.PublishPaymentFailed(ctx, event); err != nil {
			s.logger.Warn("Failed to publish payment failed event", zap.Error(err))
		}
	}
	return &Error{Code: EDECLINED, Message: reason}
}

// rejectAmount fails a claimed pending order whose callback settled a
// different amount than the order total.
func (s *PaymentService) rejectAmount(ctx context.Context, pending *models.PendingOrder, paid decimal.Decimal) error {
	reason := fmt.Sprintf("paid amount %s does not match order total %s", paid.StringFixed(2), pending.TotalAmount.StringFixed(2))
	util.PaymentCallbacksTotal.WithLabelValues("amount_mismatch").Inc()

	if err := s.store.FailClaimedPendingOrder(ctx, pending.InvoiceID, reason); err != nil {
		s.logger.Error("Failed to mark pending order failed", zap.String("invoice_id", pending.InvoiceID), zap.Error(err))
	}
	s.logger.Error("Callback amount mismatch",
		zap.String("invoice_id", pending.InvoiceID),
		zap.String("paid", paid.StringFixed(2)),
		zap.String("total", pending.TotalAmount.StringFixed(2)))

	if s.publisher != nil {
		event := &models.PaymentFailedEvent{
			BaseEvent: broker.NewBaseEvent(models.EventTypePaymentFailed),
			InvoiceID: pending.InvoiceID,
			ErrorCode: "amount_mismatch",
			Reason:    reason,
		}
		if err := s.publisher.PublishPaymentFailed(ctx, event); err != nil {
			s.logger.Warn("Failed to publish payment failed event", zap.Error(err))
		}
	}
	return invalid("paid amount does not match order total")
}

// paidAmount prefers the signed total over the plain amount field.
func paidAmount(cb payment.CallbackResult, signed *payment.CallbackHash) decimal.Decimal {
	if signed == nil || signed.Total == "" {
		return cb.PaidAmount()
	}
	d, err := decimal.NewFromString(strings.TrimSpace(signed.Total))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// mirror creates the order on the commerce platform and records its id.
func (s *PaymentService) mirror(ctx context.Context, order *models.Order) error {
	input, err := s.createOrderInput(ctx, order)
	if err != nil {
		return err
	}
	created, err := s.commerce.CreateOrder(ctx, input)
	if err != nil {
		return err
	}
	if err := s.store.AttachIkasOrder(ctx, order.ID, created.ID, created.OrderNumber, models.OrderStatusCompleted); err != nil {
		return fmt.Errorf("failed to attach ikas order %s: %w", created.ID, err)
	}

	ikasID := created.ID
	order.IkasOrderID = &ikasID
	order.OrderNumber = created.OrderNumber
	order.Status = models.OrderStatusCompleted

	if s.publisher != nil {
		event := &models.OrderCompletedEvent{
			BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderCompleted),
			OrderID:     order.ID.String(),
			InvoiceID:   derefString(order.InvoiceID),
			IkasOrderID: ikasID,
			TotalAmount: order.TotalAmount,
		}
		if order.UserID != nil {
			event.UserID = order.UserID.String()
		}
		if err := s.publisher.PublishOrderCompleted(ctx, event); err != nil {
			s.logger.Warn("Failed to publish order completed event", zap.Error(err))
		}
	}
	return nil
}

func (s *PaymentService) createOrderInput(ctx context.Context, order *models.Order) (ikas.CreateOrderInput, error) {
	lines := make([]ikas.OrderLineItemInput, len(order.Items))
	for i, item := range order.Items {
		lines[i] = ikas.OrderLineItemInput{
			Variant:  ikas.IDInput{ID: item.VariantID},
			Quantity: item.Quantity,
			Price:    item.Price.InexactFloat64(),
		}
	}

	address := toIkasAddress(order.ShippingAddress)
	input := ikas.CreateOrderInput{
		Order: ikas.OrderInput{
			CurrencyCode:    order.Currency,
			SalesChannelID:  s.cfg.SalesChannelID,
			StorefrontID:    s.cfg.StorefrontID,
			OrderLineItems:  lines,
			ShippingAddress: address,
			BillingAddress:  address,
			ShippingLines: []ikas.ShippingLine{{
				Title: order.ShippingMethod.Title,
				Price: order.ShippingMethod.Price.InexactFloat64(),
			}},
			Note: "invoice " + derefString(order.InvoiceID),
		},
		Transactions: []ikas.TransactionInput{{
			Amount:             order.TotalAmount.InexactFloat64(),
			PaymentGatewayName: paymentGatewayName,
			Type:               "SALE",
			Status:             "SUCCESS",
			TransactionID:      order.PaymentID,
		}},
	}

	customer, err := s.customerFor(ctx, order)
	if err != nil {
		return ikas.CreateOrderInput{}, err
	}
	input.Order.Customer = customer
	return input, nil
}

// customerFor builds the order's customer from the local account, falling
// back to the shipping contact for guests.
func (s *PaymentService) customerFor(ctx context.Context, order *models.Order) (*ikas.OrderCustomerInput, error) {
	addr := order.ShippingAddress
	customer := &ikas.OrderCustomerInput{Email: addr.Email, FirstName: addr.FirstName, LastName: addr.LastName}
	if order.UserID == nil {
		return customer, nil
	}

	user, err := s.store.GetUserByID(ctx, *order.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return customer, nil
		}
		return nil, fmt.Errorf("failed to load order owner: %w", err)
	}
	customer.Email = user.Email
	customer.FirstName = firstNonEmpty(user.FirstName, addr.FirstName)
	customer.LastName = firstNonEmpty(user.LastName, addr.LastName)

	if user.IkasUserID != nil {
		shadow, err := s.store.GetIkasUserByID(ctx, *user.IkasUserID)
		if err == nil {
			customer.ID = shadow.IkasCustomerID
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load customer shadow: %w", err)
		}
	}
	return customer, nil
}

func (s *PaymentService) publishMirrorFailed(ctx context.Context, order *models.Order, cause error) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderMirrorFailedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderMirrorFailed),
		OrderID:   order.ID.String(),
		InvoiceID: derefString(order.InvoiceID),
		Reason:    cause.Error(),
	}
	if err := s.publisher.PublishOrderMirrorFailed(ctx, event); err != nil {
		s.logger.Warn("Failed to publish mirror failed event", zap.Error(err))
	}
}

func validateCart(req *InitiatePaymentRequest) error {
	if strings.TrimSpace(req.InvoiceID) == "" {
		return invalid("invoiceId is required")
	}
	if len(req.Items) == 0 {
		return invalid("cart is empty")
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return invalid("quantity must be at least 1")
		}
		if item.Price.IsNegative() {
			return invalid("price must not be negative")
		}
	}
	if req.Card.Number == "" || req.Card.CVV == "" {
		return invalid("card details are required")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
