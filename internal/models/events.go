package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCompleted    = "ORDER_COMPLETED"
	EventTypeOrderMirrorFailed = "ORDER_MIRROR_FAILED"
	EventTypeOrderRefunded     = "ORDER_REFUNDED"
	EventTypePaymentFailed     = "PAYMENT_FAILED"
	EventTypeCatalogSynced     = "CATALOG_SYNCED"
	EventTypeCustomerWebhook   = "CUSTOMER_WEBHOOK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Type lets producers read the event type of any embedding event.
func (e BaseEvent) Type() string { return e.EventType }

// OrderCompletedEvent is published once a paid order is committed locally.
type OrderCompletedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	InvoiceID   string          `json:"invoice_id"`
	IkasOrderID string          `json:"ikas_order_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderMirrorFailedEvent flags a paid order missing on the commerce platform.
type OrderMirrorFailedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}

type OrderRefundedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	IkasOrderID string          `json:"ikas_order_id"`
	Amount      decimal.Decimal `json:"amount"`
}

type PaymentFailedEvent struct {
	BaseEvent
	InvoiceID string `json:"invoice_id"`
	ErrorCode string `json:"error_code"`
	Reason    string `json:"reason"`
}

type CatalogSyncedEvent struct {
	BaseEvent
	Job      string `json:"job"`
	Pages    int    `json:"pages"`
	Upserted int    `json:"upserted"`
}

// Webhook scopes sent by the commerce platform.
const (
	ScopeCustomerCreated = "store/customer/created"
	ScopeCustomerUpdated = "store/customer/updated"
)

// CustomerWebhookEvent carries a validated customer lifecycle webhook to the worker.
type CustomerWebhookEvent struct {
	BaseEvent
	Scope      string          `json:"scope"`
	MerchantID string          `json:"merchant_id"`
	Customer   CustomerPayload `json:"customer"`
}

// CustomerPayload is the customer document embedded in webhook data.
type CustomerPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Addresses []Address `json:"addresses"`
}
