package store

import (
	"context"
	"fmt"
	"time"

	"tnf-api/internal/models"

	"github.com/google/uuid"
)

// CreateOrder inserts a locally committed order.
func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (id, ikas_order_id, order_number, invoice_id, total_amount, currency, items,
			shipping_address, shipping_method, status, payment_id, is_paid, paid_at, user_id, refund_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		o.ID, o.IkasOrderID, o.OrderNumber, o.InvoiceID, o.TotalAmount, o.Currency, o.Items,
		o.ShippingAddress, o.ShippingMethod, o.Status, o.PaymentID, o.IsPaid, o.PaidAt, o.UserID, o.RefundInfo,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translate(err))
	}
	return nil
}

// UpsertOrderByIkasID stores a remote order keyed by its ikas order id. The
// local user and refund snapshot survive a refresh when the remote copy
// carries none.
func (s *Store) UpsertOrderByIkasID(ctx context.Context, o *models.Order) (bool, error) {
	if o.IkasOrderID == nil || *o.IkasOrderID == "" {
		return false, fmt.Errorf("order upsert requires an ikas order id")
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (id, ikas_order_id, order_number, total_amount, currency, items,
			shipping_address, shipping_method, status, payment_id, is_paid, paid_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ikas_order_id) DO UPDATE SET
			order_number = EXCLUDED.order_number,
			total_amount = EXCLUDED.total_amount,
			currency = EXCLUDED.currency,
			items = EXCLUDED.items,
			shipping_address = EXCLUDED.shipping_address,
			shipping_method = EXCLUDED.shipping_method,
			status = CASE WHEN orders.status = 'REFUNDED' THEN orders.status ELSE EXCLUDED.status END,
			is_paid = EXCLUDED.is_paid,
			paid_at = COALESCE(EXCLUDED.paid_at, orders.paid_at),
			user_id = COALESCE(EXCLUDED.user_id, orders.user_id),
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var row struct {
		ID        uuid.UUID `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
		Inserted  bool      `db:"inserted"`
	}
	err := s.db.GetContext(ctx, &row, query,
		o.ID, o.IkasOrderID, o.OrderNumber, o.TotalAmount, o.Currency, o.Items,
		o.ShippingAddress, o.ShippingMethod, o.Status, o.PaymentID, o.IsPaid, o.PaidAt, o.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to upsert order %s: %w", *o.IkasOrderID, translate(err))
	}

	o.ID, o.CreatedAt, o.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return row.Inserted, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := s.db.GetContext(ctx, &o, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *Store) GetOrderByIkasID(ctx context.Context, ikasOrderID string) (*models.Order, error) {
	var o models.Order
	if err := s.db.GetContext(ctx, &o, "SELECT * FROM orders WHERE ikas_order_id = $1", ikasOrderID); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// AttachIkasOrder records the mirrored remote order and its final status.
// An order sync may have stored the remote order before the attach; that
// copy carries no invoice and is replaced by the paid local order.
func (s *Store) AttachIkasOrder(ctx context.Context, id uuid.UUID, ikasOrderID, orderNumber, status string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM orders WHERE ikas_order_id = $1 AND invoice_id IS NULL AND id <> $2",
		ikasOrderID, id)
	if err != nil {
		return fmt.Errorf("failed to adopt synced order: %w", translate(err))
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET ikas_order_id = $1, order_number = $2, status = $3, updated_at = NOW()
		WHERE id = $4`, ikasOrderID, orderNumber, status, id)
	if err := expectAffected(res, err, ErrNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkOrderRefunded stores the refund snapshot and flips the status.
func (s *Store) MarkOrderRefunded(ctx context.Context, id uuid.UUID, info models.RefundInfo) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, refund_info = $2, updated_at = NOW()
		WHERE id = $3`, models.OrderStatusRefunded, info, id)
	return expectAffected(res, err, ErrNotFound)
}
