package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order status values. Orders move pending → processing → shipped → delivered,
// with cancelled and refunded reachable from any pre-terminal state.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

// Payment sub-state values. Forward-only: unpaid → paid → refunded|partial_refund.
const (
	PaymentUnpaid        = "unpaid"
	PaymentPaid          = "paid"
	PaymentRefundedFull  = "refunded"
	PaymentRefundedPart  = "partial_refund"
)

// ValidOrderStatuses and ValidPaymentStatuses are the admin-facing enumerations.
var (
	ValidOrderStatuses = map[string]bool{
		OrderPending:    true,
		OrderProcessing: true,
		OrderShipped:    true,
		OrderDelivered:  true,
		OrderCancelled:  true,
		OrderRefunded:   true,
	}
	ValidPaymentStatuses = map[string]bool{
		PaymentUnpaid:       true,
		PaymentPaid:         true,
		PaymentRefundedFull: true,
		PaymentRefundedPart: true,
	}
)

// ShippingAddress is snapshotted onto the order at creation time.
type ShippingAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

// Complete reports whether the fields checkout requires are present.
func (a ShippingAddress) Complete() bool {
	return a.Name != "" && a.Phone != "" && a.Line1 != "" && a.City != "" &&
		a.Postcode != "" && a.Country != ""
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string          `bun:"id,pk" json:"id"`
	OrderNumber     string          `bun:"order_number,unique,notnull" json:"order_number"`
	VisitorID       string          `bun:"visitor_id,nullzero" json:"visitor_id,omitempty"`
	UserID          string          `bun:"user_id,nullzero" json:"user_id,omitempty"`
	Email           string          `bun:"email,notnull" json:"email"`
	ShippingAddress ShippingAddress `bun:"shipping_address,type:jsonb" json:"shipping_address"`
	Subtotal        float64         `bun:"subtotal,notnull" json:"subtotal"`
	ShippingCost    float64         `bun:"shipping_cost,notnull" json:"shipping_cost"`
	Tax             float64         `bun:"tax,notnull" json:"tax"`
	Discount        float64         `bun:"discount,notnull" json:"discount"`
	CouponCode      string          `bun:"coupon_code,nullzero" json:"coupon_code,omitempty"`
	Total           float64         `bun:"total,notnull" json:"total"`
	Status          string          `bun:"status,notnull" json:"status"`
	PaymentStatus   string          `bun:"payment_status,notnull" json:"payment_status"`
	PaymentMethod   string          `bun:"payment_method,nullzero" json:"payment_method,omitempty"`
	PayPalOrderID   string          `bun:"paypal_order_id,nullzero" json:"paypal_order_id,omitempty"`
	PayPalCaptureID string          `bun:"paypal_capture_id,nullzero" json:"paypal_capture_id,omitempty"`
	PayerEmail      string          `bun:"payer_email,nullzero" json:"payer_email,omitempty"`
	InternalNote    string          `bun:"internal_note,nullzero" json:"internal_note,omitempty"`
	CreatedAt       time.Time       `bun:"created_at,notnull" json:"created_at"`
	PaidAt          *time.Time      `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	ShippedAt       *time.Time      `bun:"shipped_at,nullzero" json:"shipped_at,omitempty"`
}

// RecomputeTotal re-derives the total invariant from the current addends.
// Called whenever subtotal, shipping, tax or discount changes.
func (o *Order) RecomputeTotal() {
	o.Total = o.Subtotal + o.ShippingCost + o.Tax - o.Discount
}

// Terminal reports whether the order status admits no further transitions.
func (o *Order) Terminal() bool {
	return o.Status == OrderDelivered || o.Status == OrderCancelled || o.Status == OrderRefunded
}

// CanTransitionStatus reports whether the order status may move from → to.
func CanTransitionStatus(from, to string) bool {
	if from == to {
		return true
	}
	// cancelled/refunded absorb from any pre-terminal state
	if to == OrderCancelled || to == OrderRefunded {
		return from == OrderPending || from == OrderProcessing || from == OrderShipped
	}
	switch from {
	case OrderPending:
		return to == OrderProcessing
	case OrderProcessing:
		return to == OrderShipped
	case OrderShipped:
		return to == OrderDelivered
	}
	return false
}

// CanTransitionPayment reports whether the payment sub-state may move from → to.
// Only forward transitions are allowed; refunds are the one way out of paid.
func CanTransitionPayment(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case PaymentUnpaid:
		return to == PaymentPaid
	case PaymentPaid:
		return to == PaymentRefundedFull || to == PaymentRefundedPart
	case PaymentRefundedPart:
		return to == PaymentRefundedFull
	}
	return false
}

// OrderItem is the immutable per-line price snapshot, created atomically with
// its order and never mutated afterwards.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID          string      `bun:"id,pk" json:"id"`
	OrderID     string      `bun:"order_id,notnull" json:"order_id"`
	SKU         string      `bun:"sku,notnull" json:"sku"`
	ProductSlug string      `bun:"product_slug,notnull" json:"product_slug"`
	Name        string      `bun:"name,notnull" json:"name"`
	Variant     string      `bun:"variant,nullzero" json:"variant,omitempty"`
	Color       string      `bun:"color,nullzero" json:"color,omitempty"`
	Size        string      `bun:"size,nullzero" json:"size,omitempty"`
	CustomTexts []string    `bun:"custom_texts,type:jsonb,nullzero" json:"custom_texts,omitempty"`
	Stripe      *CartStripe `bun:"stripe,type:jsonb,nullzero" json:"stripe,omitempty"`
	Addons      []CartAddon `bun:"addons,type:jsonb,nullzero" json:"addons,omitempty"`
	UnitPrice   float64     `bun:"unit_price,notnull" json:"unit_price"`
	Quantity    int         `bun:"quantity,notnull" json:"quantity"`
	LineTotal   float64     `bun:"line_total,notnull" json:"line_total"`
}

// OrderWithItems bundles an order and its snapshot lines for API responses.
type OrderWithItems struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}
