package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/order/db"
)

// Verifier checks a raw webhook payload against its transmission headers.
type Verifier interface {
	VerifyWebhookSignature(ctx context.Context, headers http.Header, payload []byte) (bool, error)
}

// OrderDB is the slice of the order repository the reconciler needs.
type OrderDB interface {
	GetOrderByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID, captureID, payerEmail string) (bool, error)
	MarkCancelled(ctx context.Context, orderID, note string) error
	MarkRefunded(ctx context.Context, orderID string, partial bool) error
}

// WebhookError carries an HTTP status and a client-safe message out of
// webhook processing.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string
	InternalError error
}

func (e *WebhookError) Error() string {
	if e.InternalError != nil {
		return fmt.Sprintf("%s webhook error: %v", e.Category, e.InternalError)
	}
	return fmt.Sprintf("%s webhook error: %s", e.Category, e.PublicError)
}

// Handler reconciles provider webhook notifications with local order state.
// Signature verification is mandatory; an unverifiable payload is rejected
// with 400. Every verified event is acknowledged with 200 regardless of
// processing outcome, so the provider never retries events we have already
// seen and cannot use.
type Handler struct {
	Verifier Verifier
	DB       OrderDB
	Logger   *logger.Logger
}

func NewHandler(verifier Verifier, database OrderDB, log *logger.Logger) *Handler {
	return &Handler{Verifier: verifier, DB: database, Logger: log}
}

// PayPal event types the reconciler acts on. Everything else is acknowledged
// and dropped.
const (
	eventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	eventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	eventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
	eventOrderCompleted   = "CHECKOUT.ORDER.COMPLETED"
)

type paypalEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	Resource   json.RawMessage `json:"resource"`
	CreateTime string          `json:"create_time"`
}

type captureResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
	Links []resourceLink `json:"links"`
}

type resourceLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResource struct {
	ID string `json:"id"`
}

// HandlePayPal is the webhook endpoint. The response body is always
// {"received": true} on acknowledgement, matching what PayPal expects.
func (h *Handler) HandlePayPal(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read payload", http.StatusBadRequest)
		return
	}

	verified, err := h.Verifier.VerifyWebhookSignature(r.Context(), r.Header, body)
	if err != nil || !verified {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Signature verification failed: verified=%t err=%v", verified, err))
		webhookErr := &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: err,
		}
		http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
		return
	}

	var event paypalEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// verified but malformed; acknowledge so it is not redelivered
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to decode verified event: %v", err))
		h.acknowledge(w)
		return
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("Received %s (%s)", event.EventType, event.ID))

	if err := h.process(r.Context(), event); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Processing %s (%s) failed: %v", event.EventType, event.ID, err))
	}
	h.acknowledge(w)
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received": true}`))
}

func (h *Handler) process(ctx context.Context, event paypalEvent) error {
	switch event.EventType {
	case eventCaptureCompleted:
		return h.captureCompleted(ctx, event)
	case eventCaptureDenied:
		return h.captureDenied(ctx, event)
	case eventCaptureRefunded:
		return h.captureRefunded(ctx, event)
	case eventOrderCompleted:
		return h.orderCompleted(ctx, event)
	default:
		h.Logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring event type %s", event.EventType))
		return nil
	}
}

// captureCompleted is the reconciliation path for captures the synchronous
// endpoint missed (client closed the tab between approval and capture).
// MarkPaid applies at most once, so a webhook arriving after a successful
// client capture is a no-op.
func (h *Handler) captureCompleted(ctx context.Context, event paypalEvent) error {
	var resource captureResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("invalid capture resource: %w", err)
	}

	providerOrderID := resource.SupplementaryData.RelatedIDs.OrderID
	if providerOrderID == "" {
		providerOrderID = orderIDFromLinks(resource.Links)
	}
	if providerOrderID == "" {
		return fmt.Errorf("capture %s carries no order reference", resource.ID)
	}

	order, err := h.DB.GetOrderByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return fmt.Errorf("no order for provider id %s: %w", providerOrderID, err)
	}

	// capture events carry no payer details; the email stays whatever the
	// synchronous capture recorded
	applied, err := h.DB.MarkPaid(ctx, order.ID, resource.ID, "")
	if err != nil {
		return fmt.Errorf("failed to mark %s paid: %w", order.OrderNumber, err)
	}
	if applied {
		h.Logger.LogOrder("WEBHOOK", order.OrderNumber, fmt.Sprintf("Reconciled capture %s", resource.ID))
	} else {
		h.Logger.LogOrder("WEBHOOK", order.OrderNumber, "Capture already recorded")
	}
	return nil
}

func (h *Handler) captureDenied(ctx context.Context, event paypalEvent) error {
	var resource captureResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("invalid capture resource: %w", err)
	}

	providerOrderID := resource.SupplementaryData.RelatedIDs.OrderID
	if providerOrderID == "" {
		return fmt.Errorf("denied capture %s carries no order reference", resource.ID)
	}

	order, err := h.DB.GetOrderByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return fmt.Errorf("no order for provider id %s: %w", providerOrderID, err)
	}

	if order.PaymentStatus == models.PaymentPaid {
		// a denial after a recorded capture is provider noise, never unwind
		h.Logger.Warn("WEBHOOK", fmt.Sprintf("Ignoring denial for already-paid order %s", order.OrderNumber))
		return nil
	}

	note := fmt.Sprintf("payment denied by provider (capture %s)", resource.ID)
	if err := h.DB.MarkCancelled(ctx, order.ID, note); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", order.OrderNumber, err)
	}
	h.Logger.LogOrder("WEBHOOK", order.OrderNumber, "Cancelled after denied capture")
	return nil
}

func (h *Handler) captureRefunded(ctx context.Context, event paypalEvent) error {
	var resource captureResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("invalid refund resource: %w", err)
	}

	providerOrderID := resource.SupplementaryData.RelatedIDs.OrderID
	if providerOrderID == "" {
		return fmt.Errorf("refund %s carries no order reference", resource.ID)
	}

	order, err := h.DB.GetOrderByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return fmt.Errorf("no order for provider id %s: %w", providerOrderID, err)
	}

	if order.PaymentStatus == models.PaymentRefundedFull {
		h.Logger.LogOrder("WEBHOOK", order.OrderNumber, "Refund already recorded")
		return nil
	}

	// provider-initiated refunds arrive without a local amount; treat a
	// refund for less than the order total as partial
	partial := false
	var refunded float64
	if _, err := fmt.Sscanf(resource.Amount.Value, "%f", &refunded); err == nil && refunded > 0 {
		partial = refunded < order.Total
	}

	if err := h.DB.MarkRefunded(ctx, order.ID, partial); err != nil {
		return fmt.Errorf("failed to mark %s refunded: %w", order.OrderNumber, err)
	}
	h.Logger.LogOrder("WEBHOOK", order.OrderNumber, fmt.Sprintf("Refund recorded (partial=%t)", partial))
	return nil
}

// orderCompleted is informational: the order resource id is the provider
// order id itself, so it reconciles the same way as a completed capture but
// without a capture id of its own.
func (h *Handler) orderCompleted(ctx context.Context, event paypalEvent) error {
	var resource orderResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("invalid order resource: %w", err)
	}
	if resource.ID == "" {
		return fmt.Errorf("order completed event carries no order id")
	}

	order, err := h.DB.GetOrderByProviderOrderID(ctx, resource.ID)
	if err != nil {
		if err == db.ErrNotFound {
			h.Logger.Warn("WEBHOOK", fmt.Sprintf("No local order for completed provider order %s", resource.ID))
			return nil
		}
		return err
	}

	if order.PaymentStatus != models.PaymentPaid {
		h.Logger.LogOrder("WEBHOOK", order.OrderNumber,
			"Provider reports order completed but no capture recorded yet")
	}
	return nil
}

// orderIDFromLinks digs the checkout order id out of the HATEOAS "up" link,
// e.g. .../v2/checkout/orders/5O190127TN364715T.
func orderIDFromLinks(links []resourceLink) string {
	for _, link := range links {
		if link.Rel != "up" {
			continue
		}
		if idx := strings.LastIndex(link.Href, "/"); idx >= 0 && idx < len(link.Href)-1 {
			return link.Href[idx+1:]
		}
	}
	return ""
}
