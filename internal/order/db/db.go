package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"props-shop/internal/models"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrInvalidStatus = errors.New("invalid status value")
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrderWithItems inserts the order and its item snapshot in a single
// transaction. Either everything lands or nothing does; there is no window
// where an order row exists without its items.
func (d *DB) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", order.OrderNumber, err)
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert items for order %s: %w", order.OrderNumber, err)
			}
		}
		return nil
	})
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumberAndEmail is the guest lookup: the pair must match, no
// other identifying data is accepted.
func (d *DB) GetOrderByNumberAndEmail(ctx context.Context, orderNumber, email string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_number = ?", orderNumber).
		Where("lower(email) = ?", strings.ToLower(email)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByProviderOrderID resolves the order holding an external payment
// id, used by the webhook reconciler.
func (d *DB) GetOrderByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("paypal_order_id = ?", providerOrderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (d *DB) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SetProviderOrder persists the external payment id once the provider
// accepted the order.
func (d *DB) SetProviderOrder(ctx context.Context, orderID, providerOrderID, method string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("paypal_order_id = ?", providerOrderID).
		Set("payment_method = ?", method).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- STATE TRANSITIONS ----------------

// MarkPaid moves the order to processing/paid and stamps paid_at. The
// idempotence guard lives here, in SQL: only a not-yet-paid row is touched,
// so a webhook racing the capture endpoint cannot double-apply or clobber
// paid_at. Returns whether this call applied the transition.
func (d *DB) MarkPaid(ctx context.Context, orderID, captureID, payerEmail string) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderProcessing).
		Set("payment_status = ?", models.PaymentPaid).
		Set("paypal_capture_id = ?", captureID).
		Set("paid_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("payment_status <> ?", models.PaymentPaid)
	// webhook deliveries come without payer details; keep the column null
	// rather than blanking it
	if payerEmail != "" {
		q = q.Set("payer_email = ?", payerEmail)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkCancelled terminates the order, recording why in the internal note.
// Safe to call redundantly; a paid order is not cancellable this way.
func (d *DB) MarkCancelled(ctx context.Context, orderID, note string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderCancelled).
		Set("internal_note = ?", note).
		Where("id = ?", orderID).
		Where("payment_status = ?", models.PaymentUnpaid).
		Exec(ctx)
	return err
}

// MarkShipped stamps shipped_at once; re-marking a shipped order is a no-op.
func (d *DB) MarkShipped(ctx context.Context, orderID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderShipped).
		Set("shipped_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("shipped_at IS NULL").
		Where("status = ?", models.OrderProcessing).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkRefunded applies the refund terminal state to both status fields.
func (d *DB) MarkRefunded(ctx context.Context, orderID string, partial bool) error {
	paymentStatus := models.PaymentRefundedFull
	status := models.OrderRefunded
	if partial {
		paymentStatus = models.PaymentRefundedPart
		status = models.OrderProcessing
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", paymentStatus).
		Set("status = ?", status).
		Where("id = ?", orderID).
		Where("payment_status IN (?)", bun.In([]string{models.PaymentPaid, models.PaymentRefundedPart})).
		Exec(ctx)
	return err
}

// AdminUpdate is the PUT /api/admin/orders/{id} patch. Nil means "leave as is".
type AdminUpdate struct {
	Status        *string  `json:"status,omitempty"`
	PaymentStatus *string  `json:"payment_status,omitempty"`
	InternalNote  *string  `json:"internal_note,omitempty"`
	ShippingCost  *float64 `json:"shipping_cost,omitempty"`
	Discount      *float64 `json:"discount,omitempty"`
}

// UpdateAdmin applies an admin patch. Status values are validated against
// the fixed enumerations, and total is recomputed from the stored subtotal
// and tax whenever shipping_cost or discount changes.
func (d *DB) UpdateAdmin(ctx context.Context, orderID string, patch AdminUpdate) (*models.Order, error) {
	order, err := d.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !models.ValidOrderStatuses[*patch.Status] {
			return nil, fmt.Errorf("%w: status %q", ErrInvalidStatus, *patch.Status)
		}
		if order.Terminal() && *patch.Status != order.Status {
			return nil, fmt.Errorf("%w: order is already %s", ErrInvalidStatus, order.Status)
		}
		if !models.CanTransitionStatus(order.Status, *patch.Status) {
			return nil, fmt.Errorf("%w: cannot move %s from %s to %s",
				ErrInvalidStatus, order.OrderNumber, order.Status, *patch.Status)
		}
		if *patch.Status == models.OrderShipped && order.ShippedAt == nil {
			now := time.Now()
			order.ShippedAt = &now
		}
		order.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		if !models.ValidPaymentStatuses[*patch.PaymentStatus] {
			return nil, fmt.Errorf("%w: payment_status %q", ErrInvalidStatus, *patch.PaymentStatus)
		}
		if !models.CanTransitionPayment(order.PaymentStatus, *patch.PaymentStatus) {
			return nil, fmt.Errorf("%w: cannot move %s from %s to %s",
				ErrInvalidStatus, order.OrderNumber, order.PaymentStatus, *patch.PaymentStatus)
		}
		if *patch.PaymentStatus == models.PaymentPaid && order.PaidAt == nil {
			now := time.Now()
			order.PaidAt = &now
		}
		order.PaymentStatus = *patch.PaymentStatus
	}
	if patch.InternalNote != nil {
		order.InternalNote = *patch.InternalNote
	}
	if patch.ShippingCost != nil {
		order.ShippingCost = *patch.ShippingCost
	}
	if patch.Discount != nil {
		order.Discount = *patch.Discount
	}
	order.RecomputeTotal()

	_, err = d.Bun.NewUpdate().
		Model(order).
		Column("status", "payment_status", "internal_note", "shipping_cost",
			"discount", "total", "paid_at", "shipped_at").
		Where("id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	return order, nil
}
