package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"props-shop/internal/auth"
	"props-shop/internal/catalog"
	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/order"
	"props-shop/internal/sse"
	"props-shop/internal/utils"
)

// Checkout is the slice of the order service the public API calls.
type Checkout interface {
	ValidateCart(ctx context.Context, userID, visitorID string) (*models.CartValidationResult, error)
	CreateOrder(ctx context.Context, input order.CreateOrderInput) (*order.CreateOrderResult, error)
	CaptureOrder(ctx context.Context, orderID, providerOrderID string) (*order.CaptureOrderResult, error)
	LookupGuestOrder(ctx context.Context, orderNumber, email string) (*models.OrderWithItems, error)
}

type Handler struct {
	OrderService  Checkout
	CouponService order.CouponService
	Catalog       catalog.Store
	Events        *sse.OrderEventEmitter
	Logger        *logger.Logger
}

func NewHandler(orderService Checkout, couponService order.CouponService,
	cat catalog.Store, events *sse.OrderEventEmitter, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:  orderService,
		CouponService: couponService,
		Catalog:       cat,
		Events:        events,
		Logger:        log,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	h.writeJSON(w, status, utils.ErrorResponse(message, detail))
}

// ValidateCart revalidates the session cart against the catalog.
func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	visitorID := auth.Visitor(r.Context())
	h.Logger.Info("API", fmt.Sprintf("ValidateCart: user=%s visitor=%s", userID, visitorID))

	result, err := h.OrderService.ValidateCart(r.Context(), userID, visitorID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ValidateCart: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Failed to validate cart", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ValidateCoupon checks a coupon against a subtotal without consuming it.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string  `json:"code"`
		Subtotal float64 `json:"subtotal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "Coupon code is required", nil)
		return
	}

	result, err := h.CouponService.Validate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ValidateCoupon: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Failed to validate coupon", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

type createOrderRequest struct {
	Items         []models.CartLine      `json:"items"`
	Shipping      models.ShippingAddress `json:"shipping"`
	Email         string                 `json:"email"`
	CouponCode    string                 `json:"couponCode,omitempty"`
	PaymentMethod string                 `json:"paymentMethod,omitempty"`
}

// createOrderResponse keeps the checkout wire contract flat: the result
// fields sit next to success, not nested under a data key.
type createOrderResponse struct {
	Success bool `json:"success"`
	*order.CreateOrderResult
}

// CreateOrder starts checkout: validates prices, persists the order, creates
// the external payment and returns the provider order id for client approval.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input := order.CreateOrderInput{
		Items:         req.Items,
		Shipping:      req.Shipping,
		Email:         req.Email,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
		UserID:        auth.UserID(r.Context()),
		VisitorID:     auth.Visitor(r.Context()),
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: email=%s items=%d method=%s",
		req.Email, len(req.Items), req.PaymentMethod))

	result, err := h.OrderService.CreateOrder(r.Context(), input)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		switch {
		case errors.Is(err, order.ErrEmptyCart),
			errors.Is(err, order.ErrIncompleteShipping),
			errors.Is(err, order.ErrInvalidCoupon):
			h.writeError(w, http.StatusBadRequest, "Could not create order", err)
		case errors.Is(err, order.ErrProviderUnavailable):
			// provider internals stay in the logs and the order's internal note
			h.writeError(w, http.StatusServiceUnavailable, "Payment provider unavailable", nil)
		default:
			h.writeError(w, http.StatusInternalServerError, "Could not create order", err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, createOrderResponse{Success: true, CreateOrderResult: result})
}

type captureOrderRequest struct {
	OrderID       string `json:"orderId"`
	PayPalOrderID string `json:"paypalOrderId"`
}

type captureOrderResponse struct {
	Success bool `json:"success"`
	*order.CaptureOrderResult
}

// CaptureOrder completes checkout after client-side approval. Safe to call
// more than once for the same order.
func (h *Handler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req captureOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OrderID == "" || req.PayPalOrderID == "" {
		h.writeError(w, http.StatusBadRequest, "orderId and paypalOrderId are required", nil)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CaptureOrder: order=%s provider=%s", req.OrderID, req.PayPalOrderID))

	result, err := h.OrderService.CaptureOrder(r.Context(), req.OrderID, req.PayPalOrderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CaptureOrder: %v", err))
		switch {
		case errors.Is(err, order.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "Order not found", nil)
		default:
			h.writeError(w, http.StatusInternalServerError, "Payment capture failed", nil)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, captureOrderResponse{Success: true, CaptureOrderResult: result})
}

// LookupOrder is the guest order lookup: order number plus the email it was
// placed under, both required.
func (h *Handler) LookupOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.URL.Query().Get("order_number")
	email := r.URL.Query().Get("email")
	if orderNumber == "" || email == "" {
		h.writeError(w, http.StatusBadRequest, "order_number and email are required", nil)
		return
	}

	result, err := h.OrderService.LookupGuestOrder(r.Context(), orderNumber, email)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Order not found", nil)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("LookupOrder: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Failed to look up order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetProduct serves a catalog entry by slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	product, ok := h.Catalog.ProductBySlug(slug)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// ListProducts serves the catalog index.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	slugs := h.Catalog.Slugs()
	products := make([]*models.Product, 0, len(slugs))
	for _, slug := range slugs {
		if p, ok := h.Catalog.ProductBySlug(slug); ok {
			products = append(products, p)
		}
	}
	h.writeJSON(w, http.StatusOK, products)
}

// OrderEvents streams order status changes for one order as SSE frames.
func (h *Handler) OrderEvents(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.Events.Subscribe(r.Context(), orderNumber)
	h.Logger.Info("SSE", fmt.Sprintf("Client subscribed to %s", orderNumber))

	fmt.Fprintf(w, "event: connected\ndata: {\"order_number\":%q}\n\n", orderNumber)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Info("SSE", fmt.Sprintf("Client left %s", orderNumber))
			return
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// Healthz reports liveness plus dependency reachability.
func (h *Handler) Healthz(pingers map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(pingers))
		for name, ping := range pingers {
			if err := ping(r.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks[name] = "ok"
			}
		}
		h.writeJSON(w, status, map[string]interface{}{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
