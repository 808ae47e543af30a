package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82/client"

	"props-shop/internal/config"
	"props-shop/internal/logger"
	"props-shop/internal/models"
)

// StripeProvider is the extension point for card payments. The client is
// wired up, but the checkout operations are not implemented yet; the
// interface-conformant stub keeps the provider selectable without blocking
// PayPal or bank transfer.
type StripeProvider struct {
	cfg    config.StripeConfig
	client *client.API
	logger *logger.Logger
}

func NewStripeProvider(cfg config.StripeConfig, log *logger.Logger) *StripeProvider {
	p := &StripeProvider{cfg: cfg, logger: log}
	if cfg.SecretKey != "" {
		p.client = client.New(cfg.SecretKey, nil)
	}
	return p
}

func (s *StripeProvider) Name() string { return ProviderStripe }

func (s *StripeProvider) IsConfigured() bool {
	return s.client != nil
}

func (s *StripeProvider) CreatePayment(ctx context.Context, order OrderData) (*models.CreatePaymentResult, error) {
	return nil, fmt.Errorf("%w: stripe create payment", ErrNotImplemented)
}

func (s *StripeProvider) CapturePayment(ctx context.Context, externalPaymentID string) (*models.CapturePaymentResult, error) {
	return nil, fmt.Errorf("%w: stripe capture payment", ErrNotImplemented)
}

func (s *StripeProvider) RefundPayment(ctx context.Context, transactionID string, amount float64) (*models.RefundPaymentResult, error) {
	return nil, fmt.Errorf("%w: stripe refund payment", ErrNotImplemented)
}
