package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/order/db"
	"props-shop/internal/payment"
	"props-shop/internal/sse"
	"props-shop/internal/utils"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrIncompleteShipping  = errors.New("shipping details are incomplete")
	ErrInvalidCoupon       = errors.New("coupon is not valid")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrCaptureFailed       = errors.New("payment capture failed")
	ErrNotFound            = db.ErrNotFound
	ErrNotRefundable       = errors.New("order is not refundable")
)

type DBLayer interface {
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByNumberAndEmail(ctx context.Context, orderNumber, email string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	SetProviderOrder(ctx context.Context, orderID, providerOrderID, method string) error
	MarkPaid(ctx context.Context, orderID, captureID, payerEmail string) (bool, error)
	MarkCancelled(ctx context.Context, orderID, note string) error
	MarkRefunded(ctx context.Context, orderID string, partial bool) error
}

type CartStore interface {
	Get(ctx context.Context, userID, visitorID string) ([]models.CartLine, error)
	Save(ctx context.Context, userID, visitorID string, lines []models.CartLine) error
	Clear(ctx context.Context, userID, visitorID string) error
}

type PriceValidator interface {
	Validate(lines []models.CartLine) *models.CartValidationResult
}

type CouponService interface {
	Validate(ctx context.Context, code string, subtotal float64) (*models.CouponValidation, error)
	Consume(ctx context.Context, code string) error
}

type Providers interface {
	Get(id string) (payment.Provider, error)
}

type Ledger interface {
	RecordPayment(ctx context.Context, p *models.Payment) error
}

type Publisher interface {
	PublishOrderCreated(order models.Order) error
	PublishOrderPaid(order models.Order) error
	PublishOrderCancelled(order models.Order) error
	PublishOrderRefunded(order models.Order) error
}

type Mailer interface {
	SendOrderConfirmation(order models.Order, items []models.OrderItem) error
}

// ShippingRule computes the shipping charge for a validated subtotal.
type ShippingRule struct {
	FlatRate  float64
	FreeAbove float64
}

func (r ShippingRule) Cost(subtotal float64) float64 {
	if r.FreeAbove > 0 && subtotal >= r.FreeAbove {
		return 0
	}
	return r.FlatRate
}

// Service sequences the checkout saga: validate, persist, create the
// external payment, capture, then the post-capture side effects. All
// coordination goes through the database; the service holds no state of its
// own beyond its collaborators.
type Service struct {
	DB        DBLayer
	Cart      CartStore
	Pricing   PriceValidator
	Coupons   CouponService
	Providers Providers
	Ledger    Ledger
	Kafka     Publisher
	Mail      Mailer
	Events    *sse.OrderEventEmitter
	Shipping  ShippingRule
	Currency  string
	logger    *logger.Logger
}

func NewService(database DBLayer, cartStore CartStore, pricing PriceValidator,
	coupons CouponService, providers Providers, ledger Ledger, publisher Publisher,
	mail Mailer, events *sse.OrderEventEmitter, shipping ShippingRule, currency string,
	log *logger.Logger) *Service {
	return &Service{
		DB:        database,
		Cart:      cartStore,
		Pricing:   pricing,
		Coupons:   coupons,
		Providers: providers,
		Ledger:    ledger,
		Kafka:     publisher,
		Mail:      mail,
		Events:    events,
		Shipping:  shipping,
		Currency:  currency,
		logger:    log,
	}
}

// ---------------- CART VALIDATION ----------------

// ValidateCart recomputes the session cart against the catalog. On a
// mismatch the corrected prices silently overwrite the stored cart (the
// server self-heals) while the response reports the discrepancy so the
// client can update its copy.
func (s *Service) ValidateCart(ctx context.Context, userID, visitorID string) (*models.CartValidationResult, error) {
	lines, err := s.Cart.Get(ctx, userID, visitorID)
	if err != nil {
		return nil, err
	}

	result := s.Pricing.Validate(lines)

	if !result.Valid {
		// the corrected cart may be empty when every line referenced a
		// missing product; the dead lines still have to go
		corrected := make([]models.CartLine, len(result.Items))
		for i, item := range result.Items {
			corrected[i] = item.CartLine
		}
		if err := s.Cart.Save(ctx, userID, visitorID, corrected); err != nil {
			s.logger.Error("CART", fmt.Sprintf("Failed to self-heal cart: %v", err))
		}
	}

	return result, nil
}

// ---------------- CREATE ORDER ----------------

type CreateOrderInput struct {
	Items         []models.CartLine
	Shipping      models.ShippingAddress
	Email         string
	CouponCode    string
	PaymentMethod string
	UserID        string
	VisitorID     string
}

type CreateOrderResult struct {
	OrderID         string            `json:"orderId"`
	OrderNumber     string            `json:"orderNumber"`
	ProviderOrderID string            `json:"paypalOrderId"`
	RedirectURL     string            `json:"redirectUrl,omitempty"`
	Total           float64           `json:"total"`
	PriceCorrected  bool              `json:"priceCorrected,omitempty"`
	PriceErrors     []string          `json:"priceErrors,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CreateOrder runs the first half of the saga. Prices are recomputed from the
// catalog, the coupon is validated against the recomputed subtotal, the order
// and its item snapshot are inserted together, and only then does the
// provider get asked for an external payment. A provider failure cancels the
// order with a note; it is never left silently pending.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if input.Email == "" || !input.Shipping.Complete() {
		return nil, ErrIncompleteShipping
	}

	method := input.PaymentMethod
	if method == "" {
		method = payment.ProviderPayPal
	}

	// never trust the submitted prices
	validation := s.Pricing.Validate(input.Items)
	if len(validation.Items) == 0 {
		return nil, fmt.Errorf("%w: no purchasable items in cart", ErrEmptyCart)
	}

	subtotal := validation.Subtotal

	discount := 0.0
	couponCode := ""
	if input.CouponCode != "" {
		couponResult, err := s.Coupons.Validate(ctx, input.CouponCode, subtotal)
		if err != nil {
			return nil, fmt.Errorf("coupon validation failed: %w", err)
		}
		if !couponResult.Valid {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCoupon, couponResult.Error)
		}
		discount = couponResult.Discount
		couponCode = couponResult.Code
	}

	shippingCost := s.Shipping.Cost(subtotal)
	tax := 0.0 // tax is a stub, always zero

	order := &models.Order{
		ID:              uuid.NewString(),
		OrderNumber:     utils.GenerateOrderNumber(),
		VisitorID:       input.VisitorID,
		UserID:          input.UserID,
		Email:           input.Email,
		ShippingAddress: input.Shipping,
		Subtotal:        subtotal,
		ShippingCost:    shippingCost,
		Tax:             tax,
		Discount:        discount,
		CouponCode:      couponCode,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentUnpaid,
		PaymentMethod:   method,
		CreatedAt:       time.Now(),
	}
	order.RecomputeTotal()
	order.Total = utils.Round2(order.Total)

	items := make([]models.OrderItem, len(validation.Items))
	for i, validated := range validation.Items {
		items[i] = models.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			SKU:         validated.SKU,
			ProductSlug: validated.ProductSlug,
			Name:        validated.ProductName,
			Variant:     validated.Variant,
			Color:       validated.Color,
			Size:        validated.Size,
			CustomTexts: validated.CustomTexts,
			Stripe:      validated.Stripe,
			Addons:      validated.Addons,
			UnitPrice:   validated.ValidatedUnitPrice,
			Quantity:    validated.Quantity,
			LineTotal:   utils.Round2(validated.ValidatedUnitPrice * float64(validated.Quantity)),
		}
	}

	if err := s.DB.CreateOrderWithItems(ctx, order, items); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.LogOrder("CREATE", order.OrderNumber, fmt.Sprintf("Order created, total %.2f", order.Total))

	provider, err := s.Providers.Get(method)
	if err != nil {
		s.cancelWithNote(ctx, order, fmt.Sprintf("provider unavailable: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	created, err := provider.CreatePayment(ctx, payment.OrderData{
		OrderNumber:  order.OrderNumber,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Tax:          order.Tax,
		Discount:     order.Discount,
		Total:        order.Total,
		Currency:     s.Currency,
		Items:        items,
	})
	if err != nil {
		s.cancelWithNote(ctx, order, fmt.Sprintf("payment creation failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if err := s.DB.SetProviderOrder(ctx, order.ID, created.ExternalPaymentID, method); err != nil {
		s.cancelWithNote(ctx, order, fmt.Sprintf("failed to persist external payment id: %v", err))
		return nil, fmt.Errorf("failed to persist external payment id: %w", err)
	}
	order.PayPalOrderID = created.ExternalPaymentID

	if err := s.Kafka.PublishOrderCreated(*order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order created for %s: %v", order.OrderNumber, err))
	}

	return &CreateOrderResult{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		ProviderOrderID: created.ExternalPaymentID,
		RedirectURL:     created.RedirectURL,
		Total:           order.Total,
		PriceCorrected:  !validation.Valid,
		PriceErrors:     validation.Errors,
		Metadata:        created.Metadata,
	}, nil
}

func (s *Service) cancelWithNote(ctx context.Context, order *models.Order, note string) {
	s.logger.Error("ORDER", fmt.Sprintf("Cancelling %s: %s", order.OrderNumber, note))
	if err := s.DB.MarkCancelled(ctx, order.ID, note); err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Failed to cancel order %s: %v", order.OrderNumber, err))
		return
	}
	order.Status = models.OrderCancelled
	if err := s.Kafka.PublishOrderCancelled(*order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order cancelled for %s: %v", order.OrderNumber, err))
	}
}

// ---------------- CAPTURE ORDER ----------------

type CaptureOrderResult struct {
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	CaptureID   string  `json:"captureId"`
	Total       float64 `json:"total"`
	Email       string  `json:"email"`
}

// CaptureOrder runs the second half of the saga. The order must be looked up
// by internal id AND the matching external payment id; a mismatch is treated
// as not-found so a spoofed id learns nothing. An already-paid order returns
// the existing success payload without touching the provider — double
// submission and webhook races converge here.
func (s *Service) CaptureOrder(ctx context.Context, orderID, providerOrderID string) (*CaptureOrderResult, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PayPalOrderID == "" || order.PayPalOrderID != providerOrderID {
		return nil, ErrNotFound
	}

	if order.PaymentStatus == models.PaymentPaid {
		s.logger.LogOrder("CAPTURE", order.OrderNumber, "Already paid, returning existing result")
		return &CaptureOrderResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CaptureID:   order.PayPalCaptureID,
			Total:       order.Total,
			Email:       order.Email,
		}, nil
	}

	provider, err := s.Providers.Get(order.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	captured, err := provider.CapturePayment(ctx, providerOrderID)
	if err != nil {
		s.cancelWithNote(ctx, order, fmt.Sprintf("capture failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	applied, err := s.DB.MarkPaid(ctx, order.ID, captured.TransactionID, captured.PayerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if applied {
		s.applyPaidSideEffects(ctx, order, captured)
	} else {
		// a concurrent capture or the webhook won the race; nothing to redo
		s.logger.LogOrder("CAPTURE", order.OrderNumber, "Paid concurrently, skipping side effects")
	}

	return &CaptureOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CaptureID:   captured.TransactionID,
		Total:       order.Total,
		Email:       order.Email,
	}, nil
}

// applyPaidSideEffects runs once per order, guarded by MarkPaid having
// applied: ledger row, cart clear, coupon consumption, confirmation email,
// event publication. Everything after the ledger is best-effort.
func (s *Service) applyPaidSideEffects(ctx context.Context, order *models.Order, captured *models.CapturePaymentResult) {
	order.Status = models.OrderProcessing
	order.PaymentStatus = models.PaymentPaid
	order.PayPalCaptureID = captured.TransactionID

	amount := captured.Amount
	if amount == 0 {
		amount = order.Total
	}
	currency := captured.Currency
	if currency == "" {
		currency = s.Currency
	}

	ledgerRow := &models.Payment{
		ID:               utils.GenerateLedgerID(),
		OrderID:          order.ID,
		PaymentMethod:    order.PaymentMethod,
		TransactionID:    captured.TransactionID,
		Amount:           amount,
		Currency:         currency,
		Status:           models.LedgerCompleted,
		Direction:        models.DirectionCharge,
		ProviderResponse: captured.RawResponse,
		CreatedAt:        time.Now(),
	}
	if err := s.Ledger.RecordPayment(ctx, ledgerRow); err != nil {
		s.logger.Error("LEDGER", fmt.Sprintf("Failed to record payment for %s: %v", order.OrderNumber, err))
	}

	if err := s.Cart.Clear(ctx, order.UserID, order.VisitorID); err != nil {
		s.logger.Error("CART", fmt.Sprintf("Failed to clear cart for %s: %v", order.OrderNumber, err))
	}

	if order.CouponCode != "" {
		if err := s.Coupons.Consume(ctx, order.CouponCode); err != nil {
			s.logger.Error("COUPON", fmt.Sprintf("Failed to consume coupon %s for %s: %v",
				order.CouponCode, order.OrderNumber, err))
		}
	}

	go s.sendConfirmation(*order)

	if err := s.Kafka.PublishOrderPaid(*order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order paid for %s: %v", order.OrderNumber, err))
	}

	if s.Events != nil {
		s.Events.Emit(sse.OrderStatusEvent{
			OrderNumber:   order.OrderNumber,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
		})
	}

	s.logger.LogOrder("PAID", order.OrderNumber, fmt.Sprintf("Captured %s (%.2f %s)",
		captured.TransactionID, amount, currency))
}

func (s *Service) sendConfirmation(order models.Order) {
	items, err := s.DB.GetItemsByOrder(context.Background(), order.ID)
	if err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("Failed to load items for confirmation %s: %v", order.OrderNumber, err))
		items = nil
	}
	if err := s.Mail.SendOrderConfirmation(order, items); err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("Failed to send confirmation for %s: %v", order.OrderNumber, err))
	}
}

// ---------------- LOOKUPS ----------------

func (s *Service) GetOrder(ctx context.Context, id string) (*models.OrderWithItems, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.DB.GetItemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *order, Items: items}, nil
}

// LookupGuestOrder matches strictly on the (order_number, email) pair.
func (s *Service) LookupGuestOrder(ctx context.Context, orderNumber, email string) (*models.OrderWithItems, error) {
	order, err := s.DB.GetOrderByNumberAndEmail(ctx, orderNumber, email)
	if err != nil {
		return nil, err
	}
	items, err := s.DB.GetItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *order, Items: items}, nil
}

// ---------------- REFUNDS ----------------

// RefundOrder refunds a captured payment, in full when amount is zero.
func (s *Service) RefundOrder(ctx context.Context, orderID string, amount float64) error {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus != models.PaymentPaid && order.PaymentStatus != models.PaymentRefundedPart {
		return ErrNotRefundable
	}

	provider, err := s.Providers.Get(order.PaymentMethod)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	refund, err := provider.RefundPayment(ctx, order.PayPalCaptureID, amount)
	if err != nil {
		return fmt.Errorf("refund failed: %w", err)
	}

	partial := amount > 0 && amount < order.Total
	if err := s.DB.MarkRefunded(ctx, order.ID, partial); err != nil {
		return fmt.Errorf("failed to mark order refunded: %w", err)
	}

	refundAmount := amount
	if refundAmount == 0 {
		refundAmount = order.Total
	}
	ledgerRow := &models.Payment{
		ID:               utils.GenerateLedgerID(),
		OrderID:          order.ID,
		PaymentMethod:    order.PaymentMethod,
		TransactionID:    refund.RefundID,
		Amount:           refundAmount,
		Currency:         s.Currency,
		Status:           models.LedgerCompleted,
		Direction:        models.DirectionRefund,
		ProviderResponse: refund.RawResponse,
		CreatedAt:        time.Now(),
	}
	if err := s.Ledger.RecordPayment(ctx, ledgerRow); err != nil {
		s.logger.Error("LEDGER", fmt.Sprintf("Failed to record refund for %s: %v", order.OrderNumber, err))
	}

	if err := s.Kafka.PublishOrderRefunded(*order); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order refunded for %s: %v", order.OrderNumber, err))
	}

	if s.Events != nil {
		status := models.OrderRefunded
		paymentStatus := models.PaymentRefundedFull
		if partial {
			status = order.Status
			paymentStatus = models.PaymentRefundedPart
		}
		s.Events.Emit(sse.OrderStatusEvent{
			OrderNumber:   order.OrderNumber,
			Status:        status,
			PaymentStatus: paymentStatus,
		})
	}

	s.logger.LogOrder("REFUND", order.OrderNumber, fmt.Sprintf("Refunded %.2f", refundAmount))
	return nil
}
