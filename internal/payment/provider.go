package payment

import (
	"context"
	"errors"
	"fmt"

	"props-shop/internal/models"
)

// Provider names, used as the selection key at call time.
const (
	ProviderPayPal       = "paypal"
	ProviderStripe       = "stripe"
	ProviderBankTransfer = "bank_transfer"
)

var (
	ErrNotConfigured   = errors.New("payment provider is not configured")
	ErrNotImplemented  = errors.New("payment provider operation not implemented")
	ErrUnknownProvider = errors.New("unknown payment provider")
)

// OrderData is everything a provider needs to create an external payment:
// the validated totals and the per-item breakdown. Providers must never see
// client-submitted prices.
type OrderData struct {
	OrderNumber  string
	Subtotal     float64
	ShippingCost float64
	Tax          float64
	Discount     float64
	Total        float64
	Currency     string
	Items        []models.OrderItem
}

// Provider is the uniform surface over PayPal, Stripe and bank transfer.
// Implementations return an error for failure; the orchestrator translates
// that into order state, never the provider itself.
type Provider interface {
	Name() string
	IsConfigured() bool
	CreatePayment(ctx context.Context, order OrderData) (*models.CreatePaymentResult, error)
	CapturePayment(ctx context.Context, externalPaymentID string) (*models.CapturePaymentResult, error)
	RefundPayment(ctx context.Context, transactionID string, amount float64) (*models.RefundPaymentResult, error)
}

// Registry selects a configured provider by id.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider for id, requiring it to be configured.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, id)
	}
	return p, nil
}
