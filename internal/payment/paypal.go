package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"props-shop/internal/config"
	"props-shop/internal/logger"
	"props-shop/internal/models"
)

// PayPalProvider drives the PayPal Orders v2 API. Every outbound call goes
// through a client with a network timeout; a hung provider must not hold a
// checkout request open indefinitely.
type PayPalProvider struct {
	cfg    config.PayPalConfig
	client *http.Client
	logger *logger.Logger
}

func NewPayPalProvider(cfg config.PayPalConfig, log *logger.Logger) *PayPalProvider {
	return &PayPalProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

func (p *PayPalProvider) Name() string { return ProviderPayPal }

func (p *PayPalProvider) IsConfigured() bool {
	return p.cfg.ClientID != "" && p.cfg.Secret != ""
}

// token obtains a client-credentials access token. Tokens are fetched per
// call rather than cached across requests; at this shop's traffic the extra
// round trip is cheaper than token lifecycle bugs.
func (p *PayPalProvider) token(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal auth error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal auth failed: status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode paypal token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("paypal auth returned empty access token")
	}
	return tokenResp.AccessToken, nil
}

func money(currency string, amount float64) map[string]string {
	return map[string]string{
		"currency_code": currency,
		"value":         strconv.FormatFloat(amount, 'f', 2, 64),
	}
}

// CreatePayment creates a PayPal order carrying the full item breakdown.
// The PayPal-Request-Id header is set to the internal order_number so a
// client retry of create-order cannot mint a second PayPal order.
func (p *PayPalProvider) CreatePayment(ctx context.Context, order OrderData) (*models.CreatePaymentResult, error) {
	accessToken, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.Name
		if item.Variant != "" {
			name = fmt.Sprintf("%s (%s)", name, item.Variant)
		}
		items = append(items, map[string]interface{}{
			"name":        name,
			"sku":         item.SKU,
			"quantity":    strconv.Itoa(item.Quantity),
			"unit_amount": money(order.Currency, item.UnitPrice),
		})
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": order.OrderNumber,
			"custom_id":    order.OrderNumber,
			"items":        items,
			"amount": map[string]interface{}{
				"currency_code": order.Currency,
				"value":         strconv.FormatFloat(order.Total, 'f', 2, 64),
				"breakdown": map[string]interface{}{
					"item_total": money(order.Currency, order.Subtotal),
					"shipping":   money(order.Currency, order.ShippingCost),
					"tax_total":  money(order.Currency, order.Tax),
					"discount":   money(order.Currency, order.Discount),
				},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paypal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build paypal order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	// idempotency key: internal order number
	req.Header.Set("PayPal-Request-Id", order.OrderNumber)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal order creation error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		p.logger.Error("PAYPAL", fmt.Sprintf("Order creation rejected for %s: status %d: %s",
			order.OrderNumber, resp.StatusCode, string(respBody)))
		return nil, fmt.Errorf("paypal order creation failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("failed to decode paypal order response: %w", err)
	}

	result := &models.CreatePaymentResult{ExternalPaymentID: created.ID}
	for _, link := range created.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			result.RedirectURL = link.Href
			break
		}
	}

	p.logger.LogPayment(ProviderPayPal, order.OrderNumber,
		fmt.Sprintf("Created PayPal order %s (%.2f %s)", created.ID, order.Total, order.Currency))
	return result, nil
}

// CapturePayment finalizes an approved PayPal order, moving the funds.
func (p *PayPalProvider) CapturePayment(ctx context.Context, externalPaymentID string) (*models.CapturePaymentResult, error) {
	accessToken, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.cfg.BaseURL, externalPaymentID),
		bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal capture error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paypal capture failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var captured struct {
		Status string `json:"status"`
		Payer  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Amount struct {
						CurrencyCode string `json:"currency_code"`
						Value        string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(respBody, &captured); err != nil {
		return nil, fmt.Errorf("failed to decode paypal capture response: %w", err)
	}

	if captured.Status != "COMPLETED" {
		return nil, fmt.Errorf("paypal capture not completed: status %s", captured.Status)
	}
	if len(captured.PurchaseUnits) == 0 || len(captured.PurchaseUnits[0].Payments.Captures) == 0 {
		return nil, fmt.Errorf("paypal capture response has no capture record")
	}

	capture := captured.PurchaseUnits[0].Payments.Captures[0]
	amount, err := strconv.ParseFloat(capture.Amount.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse captured amount %q: %w", capture.Amount.Value, err)
	}

	return &models.CapturePaymentResult{
		TransactionID: capture.ID,
		Amount:        amount,
		Currency:      capture.Amount.CurrencyCode,
		PayerEmail:    captured.Payer.EmailAddress,
		RawResponse:   respBody,
	}, nil
}

// RefundPayment refunds a capture, in full when amount is zero.
func (p *PayPalProvider) RefundPayment(ctx context.Context, transactionID string, amount float64) (*models.RefundPaymentResult, error) {
	accessToken, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	body := []byte("{}")
	if amount > 0 {
		body, err = json.Marshal(map[string]interface{}{
			"amount": money(p.cfg.Currency, amount),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal refund request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v2/payments/captures/%s/refund", p.cfg.BaseURL, transactionID),
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal refund error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paypal refund failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var refunded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &refunded); err != nil {
		return nil, fmt.Errorf("failed to decode paypal refund response: %w", err)
	}

	return &models.RefundPaymentResult{RefundID: refunded.ID, RawResponse: respBody}, nil
}

// VerifyWebhookSignature asks PayPal's verify-webhook-signature API whether
// the transmission headers match the payload for the configured webhook id.
func (p *PayPalProvider) VerifyWebhookSignature(ctx context.Context, headers http.Header, payload []byte) (bool, error) {
	if p.cfg.WebhookID == "" {
		return false, fmt.Errorf("webhook id is not configured")
	}

	accessToken, err := p.token(ctx)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("paypal verification error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("paypal verification failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var verification struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verification); err != nil {
		return false, fmt.Errorf("failed to decode verification response: %w", err)
	}

	return verification.VerificationStatus == "SUCCESS", nil
}
