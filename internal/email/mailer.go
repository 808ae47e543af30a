package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"props-shop/internal/config"
	"props-shop/internal/logger"
	"props-shop/internal/models"
)

// Mailer sends order confirmations. Sending is fire-and-forget: the capture
// endpoint never blocks on, or fails because of, the mail server.
type Mailer struct {
	cfg    config.EmailConfig
	logger *logger.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: log, send: smtp.SendMail}
}

func (m *Mailer) IsConfigured() bool {
	return m.cfg.SMTPHost != "" && m.cfg.SMTPUsername != ""
}

// SendOrderConfirmation delivers the confirmation for a paid order.
func (m *Mailer) SendOrderConfirmation(order models.Order, items []models.OrderItem) error {
	if !m.IsConfigured() {
		m.logger.Warn("EMAIL", "SMTP not configured, skipping order confirmation")
		return nil
	}

	var lines strings.Builder
	for _, item := range items {
		fmt.Fprintf(&lines, "  %dx %s — %.2f\r\n", item.Quantity, item.Name, item.LineTotal)
	}

	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nThank you for your order %s!\r\n\r\n%s\r\nSubtotal: %.2f\r\nShipping: %.2f\r\nDiscount: %.2f\r\nTotal: %.2f\r\n\r\nWe'll let you know as soon as it ships.\r\n",
		order.ShippingAddress.Name, order.OrderNumber, lines.String(),
		order.Subtotal, order.ShippingCost, order.Discount, order.Total,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Order confirmation %s\r\n\r\n%s",
		m.cfg.FromAddress, order.Email, order.OrderNumber, body)

	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	if err := m.send(addr, auth, m.cfg.FromAddress, []string{order.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send confirmation for %s: %w", order.OrderNumber, err)
	}

	m.logger.Info("EMAIL", fmt.Sprintf("Order confirmation sent for %s to %s", order.OrderNumber, order.Email))
	return nil
}
