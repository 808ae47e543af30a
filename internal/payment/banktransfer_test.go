package payment_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"props-shop/internal/config"
	"props-shop/internal/logger"
	"props-shop/internal/payment"
)

func newBankProvider() *payment.BankTransferProvider {
	return payment.NewBankTransferProvider(config.BankConfig{
		AccountName:   "Props Shop Ltd",
		AccountNumber: "001-234567-8",
		BankName:      "First Bank",
		BranchCode:    "042",
	}, logger.NewLogger())
}

func TestBankTransferCreatePayment(t *testing.T) {
	provider := newBankProvider()

	result, err := provider.CreatePayment(context.Background(), orderData())

	require.NoError(t, err)
	assert.Equal(t, "BANK-NP-20260829-000007", result.ExternalPaymentID)
	assert.Equal(t, "First Bank", result.Metadata["bank_name"])
	assert.Equal(t, "NP-20260829-000007", result.Metadata["reference"])
	assert.Equal(t, "57.50 USD", result.Metadata["amount"])

	// the QR slip decodes to a PNG
	png, err := base64.StdEncoding.DecodeString(result.Metadata["qr_slip"])
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestBankTransferCaptureAlwaysSucceeds(t *testing.T) {
	provider := newBankProvider()

	result, err := provider.CapturePayment(context.Background(), "BANK-NP-20260829-000007")

	require.NoError(t, err)
	assert.Equal(t, "BANK-NP-20260829-000007", result.TransactionID)
}

func TestBankTransferNotConfigured(t *testing.T) {
	provider := payment.NewBankTransferProvider(config.BankConfig{}, logger.NewLogger())

	assert.False(t, provider.IsConfigured())
}
