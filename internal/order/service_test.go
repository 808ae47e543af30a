package order_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/order"
	"props-shop/internal/order/db"
	"props-shop/internal/payment"
	"props-shop/internal/sse"
)

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateOrderWithItems(ctx context.Context, o *models.Order, items []models.OrderItem) error {
	args := m.Called(ctx, o, items)
	return args.Error(0)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderByNumberAndEmail(ctx context.Context, orderNumber, email string) (*models.Order, error) {
	args := m.Called(ctx, orderNumber, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderItem), args.Error(1)
}

func (m *MockDBLayer) SetProviderOrder(ctx context.Context, orderID, providerOrderID, method string) error {
	args := m.Called(ctx, orderID, providerOrderID, method)
	return args.Error(0)
}

func (m *MockDBLayer) MarkPaid(ctx context.Context, orderID, captureID, payerEmail string) (bool, error) {
	args := m.Called(ctx, orderID, captureID, payerEmail)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) MarkCancelled(ctx context.Context, orderID, note string) error {
	args := m.Called(ctx, orderID, note)
	return args.Error(0)
}

func (m *MockDBLayer) MarkRefunded(ctx context.Context, orderID string, partial bool) error {
	args := m.Called(ctx, orderID, partial)
	return args.Error(0)
}

type MockCartStore struct {
	mock.Mock
}

func (m *MockCartStore) Get(ctx context.Context, userID, visitorID string) ([]models.CartLine, error) {
	args := m.Called(ctx, userID, visitorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CartLine), args.Error(1)
}

func (m *MockCartStore) Save(ctx context.Context, userID, visitorID string, lines []models.CartLine) error {
	args := m.Called(ctx, userID, visitorID, lines)
	return args.Error(0)
}

func (m *MockCartStore) Clear(ctx context.Context, userID, visitorID string) error {
	args := m.Called(ctx, userID, visitorID)
	return args.Error(0)
}

type MockPricing struct {
	mock.Mock
}

func (m *MockPricing) Validate(lines []models.CartLine) *models.CartValidationResult {
	args := m.Called(lines)
	return args.Get(0).(*models.CartValidationResult)
}

type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) Validate(ctx context.Context, code string, subtotal float64) (*models.CouponValidation, error) {
	args := m.Called(ctx, code, subtotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CouponValidation), args.Error(1)
}

func (m *MockCouponService) Consume(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string       { return payment.ProviderPayPal }
func (m *MockProvider) IsConfigured() bool { return true }

func (m *MockProvider) CreatePayment(ctx context.Context, orderData payment.OrderData) (*models.CreatePaymentResult, error) {
	args := m.Called(ctx, orderData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreatePaymentResult), args.Error(1)
}

func (m *MockProvider) CapturePayment(ctx context.Context, externalPaymentID string) (*models.CapturePaymentResult, error) {
	args := m.Called(ctx, externalPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CapturePaymentResult), args.Error(1)
}

func (m *MockProvider) RefundPayment(ctx context.Context, transactionID string, amount float64) (*models.RefundPaymentResult, error) {
	args := m.Called(ctx, transactionID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundPaymentResult), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RecordPayment(ctx context.Context, p *models.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCreated(o models.Order) error {
	return m.Called(o).Error(0)
}

func (m *MockPublisher) PublishOrderPaid(o models.Order) error {
	return m.Called(o).Error(0)
}

func (m *MockPublisher) PublishOrderCancelled(o models.Order) error {
	return m.Called(o).Error(0)
}

func (m *MockPublisher) PublishOrderRefunded(o models.Order) error {
	return m.Called(o).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOrderConfirmation(o models.Order, items []models.OrderItem) error {
	return m.Called(o, items).Error(0)
}

type fixture struct {
	db      *MockDBLayer
	cart    *MockCartStore
	pricing *MockPricing
	coupons *MockCouponService
	paypal  *MockProvider
	ledger  *MockLedger
	kafka   *MockPublisher
	mail    *MockMailer
	svc     *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:      new(MockDBLayer),
		cart:    new(MockCartStore),
		pricing: new(MockPricing),
		coupons: new(MockCouponService),
		paypal:  new(MockProvider),
		ledger:  new(MockLedger),
		kafka:   new(MockPublisher),
		mail:    new(MockMailer),
	}
	f.svc = order.NewService(
		f.db, f.cart, f.pricing, f.coupons,
		payment.NewRegistry(f.paypal),
		f.ledger, f.kafka, f.mail,
		sse.NewOrderEventEmitter(),
		order.ShippingRule{FlatRate: 8.50, FreeAbove: 120},
		"USD",
		logger.NewLogger(),
	)
	return f
}

func testLines() []models.CartLine {
	return []models.CartLine{
		{SKU: "bonnet-sage-nb", ProductSlug: "classic-bonnet", Size: "nb", UnitPrice: 24.50, Quantity: 2},
	}
}

func validResult() *models.CartValidationResult {
	return &models.CartValidationResult{
		Valid: true,
		Items: []models.ValidatedItem{
			{
				CartLine:           models.CartLine{SKU: "bonnet-sage-nb", ProductSlug: "classic-bonnet", UnitPrice: 24.50, Quantity: 2},
				ProductName:        "Classic Bonnet",
				ValidatedUnitPrice: 24.50,
			},
		},
		Subtotal: 49.00,
		Errors:   []string{},
	}
}

func validInput() order.CreateOrderInput {
	return order.CreateOrderInput{
		Items: testLines(),
		Shipping: models.ShippingAddress{
			Name: "Mia Tan", Phone: "5551234", Line1: "1 Orchid Lane",
			City: "Springfield", Postcode: "12345", Country: "US",
		},
		Email:     "mia@example.com",
		VisitorID: "visitor-1",
	}
}

// Tests start here

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newFixture(t)

	input := validInput()
	input.Items = nil

	result, err := f.svc.CreateOrder(context.Background(), input)

	assert.ErrorIs(t, err, order.ErrEmptyCart)
	assert.Nil(t, result)
	f.db.AssertNotCalled(t, "CreateOrderWithItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrderIncompleteShipping(t *testing.T) {
	f := newFixture(t)

	input := validInput()
	input.Shipping.Postcode = ""

	result, err := f.svc.CreateOrder(context.Background(), input)

	assert.ErrorIs(t, err, order.ErrIncompleteShipping)
	assert.Nil(t, result)
}

func TestCreateOrderSuccess(t *testing.T) {
	f := newFixture(t)

	f.pricing.On("Validate", mock.Anything).Return(validResult())
	f.db.On("CreateOrderWithItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.paypal.On("CreatePayment", mock.Anything, mock.MatchedBy(func(od payment.OrderData) bool {
		// the order number carries through as the provider idempotency key
		return strings.HasPrefix(od.OrderNumber, "NP-") && od.Total == 57.50
	})).Return(&models.CreatePaymentResult{ExternalPaymentID: "PAYPAL-123"}, nil)
	f.db.On("SetProviderOrder", mock.Anything, mock.Anything, "PAYPAL-123", payment.ProviderPayPal).Return(nil)
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	result, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Equal(t, "PAYPAL-123", result.ProviderOrderID)
	assert.Equal(t, 57.50, result.Total) // 49.00 + 8.50 shipping
	assert.True(t, strings.HasPrefix(result.OrderNumber, "NP-"))
	assert.False(t, result.PriceCorrected)
	f.db.AssertExpectations(t)
	f.paypal.AssertExpectations(t)
}

func TestCreateOrderFreeShippingAboveThreshold(t *testing.T) {
	f := newFixture(t)

	big := validResult()
	big.Subtotal = 150.00
	f.pricing.On("Validate", mock.Anything).Return(big)
	f.db.On("CreateOrderWithItems", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.ShippingCost == 0 && o.Total == 150.00
	}), mock.Anything).Return(nil)
	f.paypal.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&models.CreatePaymentResult{ExternalPaymentID: "PAYPAL-456"}, nil)
	f.db.On("SetProviderOrder", mock.Anything, mock.Anything, "PAYPAL-456", payment.ProviderPayPal).Return(nil)
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	result, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Equal(t, 150.00, result.Total)
	f.db.AssertExpectations(t)
}

func TestCreateOrderWithCoupon(t *testing.T) {
	f := newFixture(t)

	f.pricing.On("Validate", mock.Anything).Return(validResult())
	f.coupons.On("Validate", mock.Anything, "WELCOME10", 49.00).Return(&models.CouponValidation{
		Valid:    true,
		Discount: 4.90,
		Code:     "WELCOME10",
	}, nil)
	f.db.On("CreateOrderWithItems", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.CouponCode == "WELCOME10" && o.Discount == 4.90 && o.Total == 52.60
	}), mock.Anything).Return(nil)
	f.paypal.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&models.CreatePaymentResult{ExternalPaymentID: "PAYPAL-789"}, nil)
	f.db.On("SetProviderOrder", mock.Anything, mock.Anything, "PAYPAL-789", payment.ProviderPayPal).Return(nil)
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	input := validInput()
	input.CouponCode = "WELCOME10"
	result, err := f.svc.CreateOrder(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, 52.60, result.Total)
	// validation must not consume the coupon; that happens at capture
	f.coupons.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
	f.db.AssertExpectations(t)
}

func TestCreateOrderInvalidCoupon(t *testing.T) {
	f := newFixture(t)

	f.pricing.On("Validate", mock.Anything).Return(validResult())
	f.coupons.On("Validate", mock.Anything, "EXPIRED", 49.00).Return(&models.CouponValidation{
		Valid: false,
		Error: "coupon has expired",
	}, nil)

	input := validInput()
	input.CouponCode = "EXPIRED"
	result, err := f.svc.CreateOrder(context.Background(), input)

	assert.ErrorIs(t, err, order.ErrInvalidCoupon)
	assert.Nil(t, result)
	f.db.AssertNotCalled(t, "CreateOrderWithItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrderProviderFailure(t *testing.T) {
	f := newFixture(t)

	f.pricing.On("Validate", mock.Anything).Return(validResult())
	f.db.On("CreateOrderWithItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.paypal.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway timeout"))
	f.db.On("MarkCancelled", mock.Anything, mock.Anything, mock.MatchedBy(func(note string) bool {
		return strings.Contains(note, "payment creation failed")
	})).Return(nil)
	f.kafka.On("PublishOrderCancelled", mock.Anything).Return(nil)

	result, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.ErrorIs(t, err, order.ErrProviderUnavailable)
	assert.Nil(t, result)
	f.db.AssertExpectations(t)
}

func TestCreateOrderPriceCorrected(t *testing.T) {
	f := newFixture(t)

	drifted := validResult()
	drifted.Valid = false
	drifted.Errors = []string{`price for "bonnet-sage-nb" changed: submitted 19.50, current 24.50`}
	f.pricing.On("Validate", mock.Anything).Return(drifted)
	f.db.On("CreateOrderWithItems", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		// the order is priced from the catalog, not from the client
		return o.Subtotal == 49.00
	}), mock.Anything).Return(nil)
	f.paypal.On("CreatePayment", mock.Anything, mock.Anything).
		Return(&models.CreatePaymentResult{ExternalPaymentID: "PAYPAL-DRIFT"}, nil)
	f.db.On("SetProviderOrder", mock.Anything, mock.Anything, "PAYPAL-DRIFT", payment.ProviderPayPal).Return(nil)
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	result, err := f.svc.CreateOrder(context.Background(), validInput())

	assert.NoError(t, err)
	assert.True(t, result.PriceCorrected)
	assert.NotEmpty(t, result.PriceErrors)
}

func paidOrder() *models.Order {
	return &models.Order{
		ID:              "order-1",
		OrderNumber:     "NP-20260829-000042",
		VisitorID:       "visitor-1",
		Email:           "mia@example.com",
		Subtotal:        49.00,
		ShippingCost:    8.50,
		Total:           57.50,
		Status:          models.OrderProcessing,
		PaymentStatus:   models.PaymentPaid,
		PaymentMethod:   payment.ProviderPayPal,
		PayPalOrderID:   "PAYPAL-123",
		PayPalCaptureID: "CAP-1",
	}
}

func pendingOrder() *models.Order {
	o := paidOrder()
	o.Status = models.OrderPending
	o.PaymentStatus = models.PaymentUnpaid
	o.PayPalCaptureID = ""
	return o
}

func TestCaptureOrderSuccess(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(pendingOrder(), nil)
	f.paypal.On("CapturePayment", mock.Anything, "PAYPAL-123").Return(&models.CapturePaymentResult{
		TransactionID: "CAP-1",
		Amount:        57.50,
		Currency:      "USD",
		PayerEmail:    "jane@example.com",
	}, nil)
	f.db.On("MarkPaid", mock.Anything, "order-1", "CAP-1", "jane@example.com").Return(true, nil)
	f.ledger.On("RecordPayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.OrderID == "order-1" && p.Direction == models.DirectionCharge && p.Amount == 57.50
	})).Return(nil)
	f.cart.On("Clear", mock.Anything, "", "visitor-1").Return(nil)
	f.kafka.On("PublishOrderPaid", mock.Anything).Return(nil)
	f.db.On("GetItemsByOrder", mock.Anything, "order-1").Return([]models.OrderItem{}, nil).Maybe()
	f.mail.On("SendOrderConfirmation", mock.Anything, mock.Anything).Return(nil).Maybe()

	result, err := f.svc.CaptureOrder(context.Background(), "order-1", "PAYPAL-123")

	assert.NoError(t, err)
	assert.Equal(t, "CAP-1", result.CaptureID)
	assert.Equal(t, "NP-20260829-000042", result.OrderNumber)
	f.db.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.cart.AssertExpectations(t)
}

func TestCaptureOrderAlreadyPaid(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(paidOrder(), nil)

	result, err := f.svc.CaptureOrder(context.Background(), "order-1", "PAYPAL-123")

	assert.NoError(t, err)
	assert.Equal(t, "CAP-1", result.CaptureID)
	// no second provider call, no second ledger row, cart untouched
	f.paypal.AssertNotCalled(t, "CapturePayment", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything)
	f.cart.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything)
}

func TestCaptureOrderIDMismatch(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(pendingOrder(), nil)

	result, err := f.svc.CaptureOrder(context.Background(), "order-1", "SOMEONE-ELSES-ID")

	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Nil(t, result)
	f.paypal.AssertNotCalled(t, "CapturePayment", mock.Anything, mock.Anything)
}

func TestCaptureOrderUnknownOrder(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "ghost").Return(nil, db.ErrNotFound)

	result, err := f.svc.CaptureOrder(context.Background(), "ghost", "PAYPAL-123")

	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Nil(t, result)
}

func TestCaptureOrderProviderFailure(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(pendingOrder(), nil)
	f.paypal.On("CapturePayment", mock.Anything, "PAYPAL-123").
		Return(nil, errors.New("INSTRUMENT_DECLINED"))
	f.db.On("MarkCancelled", mock.Anything, "order-1", mock.Anything).Return(nil)
	f.kafka.On("PublishOrderCancelled", mock.Anything).Return(nil)

	result, err := f.svc.CaptureOrder(context.Background(), "order-1", "PAYPAL-123")

	assert.ErrorIs(t, err, order.ErrCaptureFailed)
	assert.Nil(t, result)
	f.ledger.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything)
}

func TestCaptureOrderLostRace(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(pendingOrder(), nil)
	f.paypal.On("CapturePayment", mock.Anything, "PAYPAL-123").Return(&models.CapturePaymentResult{
		TransactionID: "CAP-1",
	}, nil)
	// the webhook got there first
	f.db.On("MarkPaid", mock.Anything, "order-1", "CAP-1", "").Return(false, nil)

	result, err := f.svc.CaptureOrder(context.Background(), "order-1", "PAYPAL-123")

	assert.NoError(t, err)
	assert.Equal(t, "CAP-1", result.CaptureID)
	f.ledger.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything)
	f.coupons.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestCaptureOrderConsumesCouponOnce(t *testing.T) {
	f := newFixture(t)

	o := pendingOrder()
	o.CouponCode = "WELCOME10"
	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(o, nil)
	f.paypal.On("CapturePayment", mock.Anything, "PAYPAL-123").Return(&models.CapturePaymentResult{
		TransactionID: "CAP-1",
		Amount:        52.60,
		Currency:      "USD",
	}, nil)
	f.db.On("MarkPaid", mock.Anything, "order-1", "CAP-1", "").Return(true, nil)
	f.ledger.On("RecordPayment", mock.Anything, mock.Anything).Return(nil)
	f.cart.On("Clear", mock.Anything, "", "visitor-1").Return(nil)
	f.coupons.On("Consume", mock.Anything, "WELCOME10").Return(nil).Once()
	f.kafka.On("PublishOrderPaid", mock.Anything).Return(nil)
	f.db.On("GetItemsByOrder", mock.Anything, "order-1").Return([]models.OrderItem{}, nil).Maybe()
	f.mail.On("SendOrderConfirmation", mock.Anything, mock.Anything).Return(nil).Maybe()

	_, err := f.svc.CaptureOrder(context.Background(), "order-1", "PAYPAL-123")

	assert.NoError(t, err)
	f.coupons.AssertExpectations(t)
}

func TestRefundOrderNotPaid(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(pendingOrder(), nil)

	err := f.svc.RefundOrder(context.Background(), "order-1", 0)

	assert.ErrorIs(t, err, order.ErrNotRefundable)
	f.paypal.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefundOrderFull(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(paidOrder(), nil)
	f.paypal.On("RefundPayment", mock.Anything, "CAP-1", 0.0).
		Return(&models.RefundPaymentResult{RefundID: "REF-1"}, nil)
	f.db.On("MarkRefunded", mock.Anything, "order-1", false).Return(nil)
	f.ledger.On("RecordPayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Direction == models.DirectionRefund && p.Amount == 57.50
	})).Return(nil)
	f.kafka.On("PublishOrderRefunded", mock.Anything).Return(nil)

	err := f.svc.RefundOrder(context.Background(), "order-1", 0)

	assert.NoError(t, err)
	f.db.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestRefundOrderPartial(t *testing.T) {
	f := newFixture(t)

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(paidOrder(), nil)
	f.paypal.On("RefundPayment", mock.Anything, "CAP-1", 20.0).
		Return(&models.RefundPaymentResult{RefundID: "REF-2"}, nil)
	f.db.On("MarkRefunded", mock.Anything, "order-1", true).Return(nil)
	f.ledger.On("RecordPayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Direction == models.DirectionRefund && p.Amount == 20.0
	})).Return(nil)
	f.kafka.On("PublishOrderRefunded", mock.Anything).Return(nil)

	err := f.svc.RefundOrder(context.Background(), "order-1", 20.0)

	assert.NoError(t, err)
	f.db.AssertExpectations(t)
}

func TestShippingRule(t *testing.T) {
	rule := order.ShippingRule{FlatRate: 8.50, FreeAbove: 120}

	assert.Equal(t, 8.50, rule.Cost(49.00))
	assert.Equal(t, 8.50, rule.Cost(119.99))
	assert.Equal(t, 0.0, rule.Cost(120.00))
	assert.Equal(t, 0.0, rule.Cost(500.00))

	noWaiver := order.ShippingRule{FlatRate: 8.50}
	assert.Equal(t, 8.50, noWaiver.Cost(1000.00))
}

func TestValidateCartSelfHeals(t *testing.T) {
	f := newFixture(t)

	lines := testLines()
	drifted := validResult()
	drifted.Valid = false
	drifted.Errors = []string{"price changed"}

	f.cart.On("Get", mock.Anything, "", "visitor-1").Return(lines, nil)
	f.pricing.On("Validate", lines).Return(drifted)
	f.cart.On("Save", mock.Anything, "", "visitor-1", mock.MatchedBy(func(saved []models.CartLine) bool {
		return len(saved) == 1 && saved[0].UnitPrice == 24.50
	})).Return(nil)

	result, err := f.svc.ValidateCart(context.Background(), "", "visitor-1")

	assert.NoError(t, err)
	assert.False(t, result.Valid)
	f.cart.AssertExpectations(t)
}

func TestValidateCartSelfHealsWhenEveryLineDropped(t *testing.T) {
	f := newFixture(t)

	lines := testLines()
	gutted := &models.CartValidationResult{
		Valid:  false,
		Items:  []models.ValidatedItem{},
		Errors: []string{"product no longer available: classic-bonnet"},
	}

	f.cart.On("Get", mock.Anything, "", "visitor-1").Return(lines, nil)
	f.pricing.On("Validate", lines).Return(gutted)
	f.cart.On("Save", mock.Anything, "", "visitor-1", mock.MatchedBy(func(saved []models.CartLine) bool {
		return len(saved) == 0
	})).Return(nil)

	result, err := f.svc.ValidateCart(context.Background(), "", "visitor-1")

	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Empty(t, result.Items)
	f.cart.AssertExpectations(t)
}
