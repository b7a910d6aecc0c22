package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tnf-api/internal/models"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewBaseEvent stamps a fresh event id and time.
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// EventPublisher routes domain events to the order and customer topics.
type EventPublisher struct {
	orders    *Producer
	customers *Producer
}

func NewEventPublisher(orders, customers *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, customers: customers}
}

func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.orders.PublishEvent(ctx, "order-"+event.OrderID, event)
}

func (ep *EventPublisher) PublishOrderMirrorFailed(ctx context.Context, event *models.OrderMirrorFailedEvent) error {
	return ep.orders.PublishEvent(ctx, "order-"+event.OrderID, event)
}

func (ep *EventPublisher) PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	return ep.orders.PublishEvent(ctx, "order-"+event.OrderID, event)
}

func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.orders.PublishEvent(ctx, "invoice-"+event.InvoiceID, event)
}

func (ep *EventPublisher) PublishCatalogSynced(ctx context.Context, event *models.CatalogSyncedEvent) error {
	return ep.orders.PublishEvent(ctx, "sync-"+event.Job, event)
}

// PublishCustomerWebhook keys by customer id so updates for one customer stay ordered.
func (ep *EventPublisher) PublishCustomerWebhook(ctx context.Context, event *models.CustomerWebhookEvent) error {
	return ep.customers.PublishEvent(ctx, "customer-"+event.Customer.ID, event)
}

// EventHandler dispatches consumed messages by event type.
type EventHandler struct {
	onCustomerWebhook   func(context.Context, *models.CustomerWebhookEvent) error
	onOrderMirrorFailed func(context.Context, *models.OrderMirrorFailedEvent) error
	logger              *zap.Logger
}

func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Named("events")}
}

func (eh *EventHandler) OnCustomerWebhook(handler func(context.Context, *models.CustomerWebhookEvent) error) {
	eh.onCustomerWebhook = handler
}

func (eh *EventHandler) OnOrderMirrorFailed(handler func(context.Context, *models.OrderMirrorFailedEvent) error) {
	eh.onOrderMirrorFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCustomerWebhook:
		if eh.onCustomerWebhook != nil {
			var event models.CustomerWebhookEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal customer webhook event: %w", err)
			}
			return eh.onCustomerWebhook(ctx, &event)
		}

	case models.EventTypeOrderMirrorFailed:
		if eh.onOrderMirrorFailed != nil {
			var event models.OrderMirrorFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal order mirror failed event: %w", err)
			}
			return eh.onOrderMirrorFailed(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
