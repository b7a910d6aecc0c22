package store

import (
	"context"
	"fmt"

	"tnf-api/internal/models"

	"github.com/google/uuid"
)

// CreatePendingOrder stores a new pending order. A second order for the same
// invoice id fails with ErrDuplicate.
func (s *Store) CreatePendingOrder(ctx context.Context, p *models.PendingOrder) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.PendingStatusPending
	}

	query := `
		INSERT INTO pending_orders (id, invoice_id, user_id, items, shipping_address, shipping_method,
			total_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.ID, p.InvoiceID, p.UserID, p.Items, p.ShippingAddress, p.ShippingMethod,
		p.TotalAmount, p.Currency, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pending order: %w", translate(err))
	}
	return nil
}

// ClaimPendingOrder moves a pending order to processing only if it is still
// pending. Exactly one caller wins; the rest get ErrNotFound.
func (s *Store) ClaimPendingOrder(ctx context.Context, invoiceID string) (*models.PendingOrder, error) {
	var p models.PendingOrder
	err := s.db.GetContext(ctx, &p, `
		UPDATE pending_orders SET status = $1, updated_at = NOW()
		WHERE invoice_id = $2 AND status = $3
		RETURNING *`,
		models.PendingStatusProcessing, invoiceID, models.PendingStatusPending)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) CompletePendingOrder(ctx context.Context, invoiceID string) error {
	return s.movePendingOrder(ctx, invoiceID, models.PendingStatusProcessing, models.PendingStatusCompleted, "")
}

// ReleasePendingOrder hands a claimed order back to pending so the next
// callback for the invoice can claim it again.
func (s *Store) ReleasePendingOrder(ctx context.Context, invoiceID string) error {
	return s.movePendingOrder(ctx, invoiceID, models.PendingStatusProcessing, models.PendingStatusPending, "")
}

// FailPendingOrder marks a still pending order failed. A claimed order is
// owned by its claimer and is left alone.
func (s *Store) FailPendingOrder(ctx context.Context, invoiceID, reason string) error {
	return s.movePendingOrder(ctx, invoiceID, models.PendingStatusPending, models.PendingStatusFailed, reason)
}

// FailClaimedPendingOrder marks an order the caller claimed failed.
func (s *Store) FailClaimedPendingOrder(ctx context.Context, invoiceID, reason string) error {
	return s.movePendingOrder(ctx, invoiceID, models.PendingStatusProcessing, models.PendingStatusFailed, reason)
}

func (s *Store) movePendingOrder(ctx context.Context, invoiceID, from, to, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_orders
		SET status = $1, failure_reason = CASE WHEN $2 = '' THEN failure_reason ELSE $2 END, updated_at = NOW()
		WHERE invoice_id = $3 AND status = $4`,
		to, reason, invoiceID, from)
	return expectAffected(res, err, ErrNotFound)
}
