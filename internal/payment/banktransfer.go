package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"props-shop/internal/config"
	"props-shop/internal/logger"
	"props-shop/internal/models"
)

// BankTransferProvider never contacts an external API. CreatePayment returns
// the shop's bank details (plus a QR payment slip) as metadata; "capture"
// means an admin confirmed the money arrived, so it always succeeds.
type BankTransferProvider struct {
	cfg    config.BankConfig
	logger *logger.Logger
}

func NewBankTransferProvider(cfg config.BankConfig, log *logger.Logger) *BankTransferProvider {
	return &BankTransferProvider{cfg: cfg, logger: log}
}

func (b *BankTransferProvider) Name() string { return ProviderBankTransfer }

func (b *BankTransferProvider) IsConfigured() bool {
	return b.cfg.AccountNumber != "" && b.cfg.BankName != ""
}

func (b *BankTransferProvider) CreatePayment(ctx context.Context, order OrderData) (*models.CreatePaymentResult, error) {
	externalID := "BANK-" + order.OrderNumber

	metadata := map[string]string{
		"bank_name":      b.cfg.BankName,
		"branch_code":    b.cfg.BranchCode,
		"account_name":   b.cfg.AccountName,
		"account_number": b.cfg.AccountNumber,
		"reference":      order.OrderNumber,
		"amount":         fmt.Sprintf("%.2f %s", order.Total, order.Currency),
	}

	// QR slip: a scannable copy of the transfer details for mobile banking apps
	slip := strings.Join([]string{
		"BANK:" + b.cfg.BankName,
		"ACC:" + b.cfg.AccountNumber,
		"NAME:" + b.cfg.AccountName,
		"REF:" + order.OrderNumber,
		fmt.Sprintf("AMT:%.2f", order.Total),
	}, ";")
	png, err := qrcode.Encode(slip, qrcode.Medium, 256)
	if err != nil {
		// the transfer still works without the QR, so keep going
		b.logger.Warn("BANK", fmt.Sprintf("Failed to generate QR slip for %s: %v", order.OrderNumber, err))
	} else {
		metadata["qr_slip"] = base64.StdEncoding.EncodeToString(png)
	}

	b.logger.LogPayment(ProviderBankTransfer, order.OrderNumber, "Issued bank transfer instructions")
	return &models.CreatePaymentResult{
		ExternalPaymentID: externalID,
		Metadata:          metadata,
	}, nil
}

// CapturePayment is the admin's manual confirmation that the transfer landed.
func (b *BankTransferProvider) CapturePayment(ctx context.Context, externalPaymentID string) (*models.CapturePaymentResult, error) {
	orderNumber := strings.TrimPrefix(externalPaymentID, "BANK-")
	b.logger.LogPayment(ProviderBankTransfer, orderNumber, "Manual transfer confirmation recorded")
	return &models.CapturePaymentResult{
		TransactionID: externalPaymentID,
	}, nil
}

func (b *BankTransferProvider) RefundPayment(ctx context.Context, transactionID string, amount float64) (*models.RefundPaymentResult, error) {
	// refunds for bank transfers are handled outside the system
	return &models.RefundPaymentResult{RefundID: "MANUAL-" + transactionID}, nil
}
