package storage

import (
	"context"

	"props-shop/internal/models"
)

// Store is the append-only payment ledger: one row per capture or refund
// event, never updated.
type Store interface {
	RecordPayment(ctx context.Context, payment *models.Payment) error
	GetByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error)
	CountCharges(ctx context.Context, orderID string) (int, error)

	Close() error
	HealthCheck(ctx context.Context) error
}
