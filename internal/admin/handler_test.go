package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"props-shop/internal/admin"
	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/order"
	"props-shop/internal/order/db"
)

type MockOrderDB struct {
	mock.Mock
}

func (m *MockOrderDB) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderDB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderDB) GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderItem), args.Error(1)
}

func (m *MockOrderDB) UpdateAdmin(ctx context.Context, orderID string, patch db.AdminUpdate) (*models.Order, error) {
	args := m.Called(ctx, orderID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) CaptureOrder(ctx context.Context, orderID, providerOrderID string) (*order.CaptureOrderResult, error) {
	args := m.Called(ctx, orderID, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.CaptureOrderResult), args.Error(1)
}

func (m *MockCapturer) RefundOrder(ctx context.Context, orderID string, amount float64) error {
	return m.Called(ctx, orderID, amount).Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RecordPayment(ctx context.Context, payment *models.Payment) error {
	return m.Called(ctx, payment).Error(0)
}

func (m *MockLedger) GetByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockLedger) CountCharges(ctx context.Context, orderID string) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Close() error {
	return m.Called().Error(0)
}

func (m *MockLedger) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type adminFixture struct {
	db     *MockOrderDB
	orders *MockCapturer
	ledger *MockLedger
	router *gin.Engine
}

func newAdminFixture() *adminFixture {
	gin.SetMode(gin.TestMode)
	f := &adminFixture{
		db:     new(MockOrderDB),
		orders: new(MockCapturer),
		ledger: new(MockLedger),
	}
	f.router = gin.New()
	admin.NewHandler(f.db, f.orders, f.ledger, logger.NewLogger()).
		RegisterRoutes(f.router.Group("/admin"))
	return f
}

func (f *adminFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func adminOrder() *models.Order {
	return &models.Order{
		ID:            "order-1",
		OrderNumber:   "NP-20260829-000042",
		Email:         "mia@example.com",
		Status:        models.OrderProcessing,
		PaymentStatus: models.PaymentPaid,
		Total:         57.50,
	}
}

func TestListPaymentsReturnsLedgerRows(t *testing.T) {
	f := newAdminFixture()

	f.db.On("GetOrderByID", mock.Anything, "order-1").Return(adminOrder(), nil)
	f.ledger.On("GetByOrderID", mock.Anything, "order-1").Return([]*models.Payment{
		{
			ID:            "pay-1",
			OrderID:       "order-1",
			PaymentMethod: "paypal",
			TransactionID: "CAP-1",
			Amount:        57.50,
			Direction:     models.DirectionCharge,
			Status:        models.LedgerCompleted,
			CreatedAt:     time.Now(),
		},
	}, nil)

	rec := f.do(http.MethodGet, "/admin/orders/order-1/payments", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.ledger.AssertExpectations(t)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	rows, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "CAP-1", row["transaction_id"])
	assert.Equal(t, "charge", row["direction"])
}

func TestListPaymentsUnknownOrderIs404(t *testing.T) {
	f := newAdminFixture()

	f.db.On("GetOrderByID", mock.Anything, "ghost").Return(nil, db.ErrNotFound)

	rec := f.do(http.MethodGet, "/admin/orders/ghost/payments", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.ledger.AssertNotCalled(t, "GetByOrderID", mock.Anything, mock.Anything)
}

func TestUpdateOrderRejectsBadTransition(t *testing.T) {
	f := newAdminFixture()

	f.db.On("UpdateAdmin", mock.Anything, "order-1", mock.Anything).
		Return(nil, db.ErrInvalidStatus)

	rec := f.do(http.MethodPut, "/admin/orders/order-1", `{"status":"pending"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderReturnsUpdatedOrder(t *testing.T) {
	f := newAdminFixture()

	updated := adminOrder()
	updated.Status = models.OrderShipped
	f.db.On("UpdateAdmin", mock.Anything, "order-1", mock.MatchedBy(func(patch db.AdminUpdate) bool {
		return patch.Status != nil && *patch.Status == models.OrderShipped
	})).Return(updated, nil)

	rec := f.do(http.MethodPut, "/admin/orders/order-1", `{"status":"shipped"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	orderBody, ok := body["order"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "shipped", orderBody["status"])
}
