package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"props-shop/internal/logger"
	"props-shop/internal/models"
)

// PostgreSQLStore keeps the payment ledger in a plain payments table,
// shared with the main database connection.
type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates the ledger store on an existing
// connection and makes sure the table exists.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment ledger tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment ledger tables: %w", err)
	}

	log.Info("DATABASE", "Payment ledger initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "payments", "Creating payments table if not exists")

	query := `
    CREATE TABLE IF NOT EXISTS payments (
        id VARCHAR(64) PRIMARY KEY,
        order_id VARCHAR(36) NOT NULL,
        payment_method VARCHAR(32) NOT NULL,
        transaction_id VARCHAR(128) NOT NULL,
        amount DECIMAL(10,2) NOT NULL,
        currency VARCHAR(8) NOT NULL,
        status VARCHAR(32) NOT NULL,
        direction VARCHAR(16) NOT NULL,
        provider_response JSONB,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_transaction_id ON payments(transaction_id);",
	}
	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// RecordPayment appends one ledger row. Rows are never updated afterwards.
func (s *PostgreSQLStore) RecordPayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments",
		fmt.Sprintf("Recording %s %s for order %s", payment.Direction, payment.ID, payment.OrderID))

	query := `
    INSERT INTO payments (
        id, order_id, payment_method, transaction_id, amount, currency, status, direction, provider_response, created_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	var response interface{}
	if len(payment.ProviderResponse) > 0 {
		response = []byte(payment.ProviderResponse)
	}

	_, err := s.db.ExecContext(ctx, query,
		payment.ID, payment.OrderID, payment.PaymentMethod, payment.TransactionID,
		payment.Amount, payment.Currency, payment.Status, payment.Direction,
		response, payment.CreatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to record payment %s: %s", payment.ID, err.Error()))
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) GetByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error) {
	query := `
    SELECT id, order_id, payment_method, transaction_id, amount, currency, status, direction, created_at
    FROM payments
    WHERE order_id = $1
    ORDER BY created_at ASC
    `
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		err := rows.Scan(
			&payment.ID, &payment.OrderID, &payment.PaymentMethod, &payment.TransactionID,
			&payment.Amount, &payment.Currency, &payment.Status, &payment.Direction, &payment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

// CountCharges counts completed charge rows for an order. Exactly one is the
// expected steady state after capture, however many times capture was called.
func (s *PostgreSQLStore) CountCharges(ctx context.Context, orderID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE order_id = $1 AND direction = $2`,
		orderID, models.DirectionCharge,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count charges: %w", err)
	}
	return count, nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
