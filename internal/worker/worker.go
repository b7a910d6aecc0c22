package worker

import (
	"context"
	"fmt"

	"tnf-api/internal/broker"
	"tnf-api/internal/models"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerApplier writes customer webhook events.
type CustomerApplier interface {
	Apply(ctx context.Context, event *models.CustomerWebhookEvent) error
}

// MirrorRetrier re-sends paid orders to the commerce platform.
type MirrorRetrier interface {
	RetryMirror(ctx context.Context, orderID uuid.UUID) error
}

// EventWorker consumes one topic and dispatches customer webhook and
// mirror-failed events.
type EventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewEventWorker creates a new event worker
func NewEventWorker(consumer *broker.Consumer, customers CustomerApplier, orders MirrorRetrier) *EventWorker {
	return &EventWorker{
		consumer:     consumer,
		eventHandler: NewEventHandler(customers, orders),
		logger:       util.Named("worker"),
	}
}

// NewEventHandler wires the handler callbacks. Either dependency may be nil.
func NewEventHandler(customers CustomerApplier, orders MirrorRetrier) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	if customers != nil {
		eventHandler.OnCustomerWebhook(customers.Apply)
	}
	if orders != nil {
		eventHandler.OnOrderMirrorFailed(func(ctx context.Context, event *models.OrderMirrorFailedEvent) error {
			id, err := uuid.Parse(event.OrderID)
			if err != nil {
				return fmt.Errorf("mirror failed event with bad order id %q: %w", event.OrderID, err)
			}
			return orders.RetryMirror(ctx, id)
		})
	}
	return eventHandler
}

// Start blocks consuming until ctx is cancelled.
func (w *EventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EventWorker) Stop() error {
	w.logger.Info("Stopping event worker")
	return w.consumer.Close()
}
