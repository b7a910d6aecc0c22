package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tnf-api/internal/broker"
	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/util"

	"go.uber.org/zap"
)

const webhookDedupTTL = 24 * time.Hour

// envelope is the commerce platform webhook body. Data is a JSON document
// encoded as a string.
type envelope struct {
	ID         string          `json:"id"`
	Scope      string          `json:"scope"`
	MerchantID string          `json:"merchantId"`
	Data       json.RawMessage `json:"data"`
}

// Webhook is a decoded webhook, one concrete type per supported scope.
type Webhook interface {
	WebhookID() string
	WebhookScope() string
}

// CustomerWebhook covers store/customer/created and store/customer/updated.
type CustomerWebhook struct {
	ID         string
	Scope      string
	MerchantID string
	Customer   models.CustomerPayload
}

func (w *CustomerWebhook) WebhookID() string    { return w.ID }
func (w *CustomerWebhook) WebhookScope() string { return w.Scope }

// DecodeWebhook validates the envelope and decodes data by scope.
func DecodeWebhook(body []byte) (Webhook, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, invalid("malformed webhook body")
	}
	if env.Scope == "" {
		return nil, invalid("webhook scope is required")
	}

	data, err := unwrapData(env.Data)
	if err != nil {
		return nil, invalid("malformed webhook data: %v", err)
	}

	switch env.Scope {
	case models.ScopeCustomerCreated, models.ScopeCustomerUpdated:
		var customer models.CustomerPayload
		if err := json.Unmarshal(data, &customer); err != nil {
			return nil, invalid("malformed customer payload: %v", err)
		}
		if customer.ID == "" {
			return nil, invalid("customer payload without id")
		}
		return &CustomerWebhook{
			ID:         env.ID,
			Scope:      env.Scope,
			MerchantID: env.MerchantID,
			Customer:   customer,
		}, nil
	default:
		return nil, invalid("unsupported webhook scope %q", env.Scope)
	}
}

// unwrapData accepts data as a JSON string holding a document, or as the
// document itself.
func unwrapData(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("data is empty")
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// WebhookService accepts commerce webhooks and keeps customer shadows
// current. Receipt only validates and enqueues; Apply does the write.
type WebhookService struct {
	store     WebhookStore
	gateway   CommerceGateway
	publisher EventPublisher
	dedup     Deduplicator
	logger    *zap.Logger
}

func NewWebhookService(store WebhookStore, gateway CommerceGateway, publisher EventPublisher, dedup Deduplicator) *WebhookService {
	return &WebhookService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		dedup:     dedup,
		logger:    util.Named("webhook"),
	}
}

// Receive decodes a webhook and hands it to the event bus. Without a
// publisher the webhook is applied inline.
func (s *WebhookService) Receive(ctx context.Context, body []byte) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.Receive")
	defer span.End()

	hook, err := DecodeWebhook(body)
	if err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return util.RecordError(span, err)
	}

	dedupKey := ""
	if s.dedup != nil && hook.WebhookID() != "" {
		key := "webhook:" + hook.WebhookID()
		first, err := s.dedup.SetIdempotencyKey(ctx, key, hook.WebhookScope(), webhookDedupTTL)
		if err != nil {
			s.logger.Warn("Webhook dedup unavailable", zap.Error(err))
		} else if !first {
			util.WebhookEventsTotal.WithLabelValues(hook.WebhookScope(), "duplicate").Inc()
			return nil
		} else {
			dedupKey = key
		}
	}

	if err := s.dispatch(ctx, hook); err != nil {
		if dedupKey != "" {
			if rerr := s.dedup.ReleaseIdempotencyKey(ctx, dedupKey); rerr != nil {
				s.logger.Warn("Failed to release webhook dedup key", zap.String("key", dedupKey), zap.Error(rerr))
			}
		}
		return util.RecordError(span, err)
	}
	return nil
}

// dispatch enqueues a decoded webhook, or applies it inline without a
// publisher.
func (s *WebhookService) dispatch(ctx context.Context, hook Webhook) error {
	switch w := hook.(type) {
	case *CustomerWebhook:
		event := &models.CustomerWebhookEvent{
			BaseEvent:  broker.NewBaseEvent(models.EventTypeCustomerWebhook),
			Scope:      w.Scope,
			MerchantID: w.MerchantID,
			Customer:   w.Customer,
		}
		if s.publisher == nil {
			return s.Apply(ctx, event)
		}
		if err := s.publisher.PublishCustomerWebhook(ctx, event); err != nil {
			util.WebhookEventsTotal.WithLabelValues(w.Scope, "publish_failed").Inc()
			return fmt.Errorf("failed to enqueue webhook: %w", err)
		}
		util.WebhookEventsTotal.WithLabelValues(w.Scope, "accepted").Inc()
	}
	return nil
}

// Apply upserts the customer shadow carried by a webhook event.
func (s *WebhookService) Apply(ctx context.Context, event *models.CustomerWebhookEvent) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.Apply")
	defer span.End()

	c := event.Customer
	shadow := &models.IkasUser{
		IkasCustomerID: c.ID,
		Email:          strings.ToLower(c.Email),
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Phone:          c.Phone,
		Addresses:      models.CustomerAddresses(c.Addresses),
	}
	if err := s.store.UpsertIkasUser(ctx, shadow); err != nil {
		util.WebhookEventsTotal.WithLabelValues(event.Scope, "failed").Inc()
		return util.RecordError(span, fmt.Errorf("failed to apply %s for customer %s: %w", event.Scope, c.ID, err))
	}

	util.WebhookEventsTotal.WithLabelValues(event.Scope, "applied").Inc()
	s.logger.Info("Customer shadow updated",
		zap.String("scope", event.Scope),
		zap.String("ikas_customer_id", c.ID))
	return nil
}

func (s *WebhookService) ListWebhooks(ctx context.Context) ([]ikas.Webhook, error) {
	hooks, err := s.gateway.ListWebhooks(ctx)
	if err != nil {
		return nil, upstream("failed to list webhooks", err)
	}
	return hooks, nil
}

func (s *WebhookService) DeleteWebhooks(ctx context.Context, scopes []string) error {
	if len(scopes) == 0 {
		return invalid("at least one scope is required")
	}
	if err := s.gateway.DeleteWebhooks(ctx, scopes); err != nil {
		return upstream("failed to delete webhooks", err)
	}
	return nil
}
