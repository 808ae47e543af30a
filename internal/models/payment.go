package models

import (
	"encoding/json"
	"time"
)

// Payment ledger row statuses and directions.
const (
	LedgerCompleted = "completed"
	LedgerFailed    = "failed"

	DirectionCharge = "charge"
	DirectionRefund = "refund"
)

// Payment is an append-only audit record: one row per capture or refund
// event, never updated after insert.
type Payment struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	PaymentMethod    string          `json:"payment_method"`
	TransactionID    string          `json:"transaction_id"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	Direction        string          `json:"direction"`
	ProviderResponse json.RawMessage `json:"provider_response,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CreatePaymentResult is returned by a provider after creating an external
// payment. Metadata carries provider-specific payload (e.g. bank details).
type CreatePaymentResult struct {
	ExternalPaymentID string            `json:"external_payment_id"`
	RedirectURL       string            `json:"redirect_url,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CapturePaymentResult is returned by a provider after a successful capture.
type CapturePaymentResult struct {
	TransactionID string          `json:"transaction_id"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	PayerEmail    string          `json:"payer_email,omitempty"`
	RawResponse   json.RawMessage `json:"-"`
}

// RefundPaymentResult is returned by a provider after a refund.
type RefundPaymentResult struct {
	RefundID    string          `json:"refund_id"`
	RawResponse json.RawMessage `json:"-"`
}
