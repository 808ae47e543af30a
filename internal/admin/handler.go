package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"props-shop/internal/logger"
	"props-shop/internal/models"
	"props-shop/internal/order"
	"props-shop/internal/order/db"
	"props-shop/internal/payment"
	"props-shop/internal/payment/storage"
	"props-shop/internal/utils"
)

// OrderDB is the admin slice of the order repository.
type OrderDB interface {
	ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateAdmin(ctx context.Context, orderID string, patch db.AdminUpdate) (*models.Order, error)
}

// Capturer confirms out-of-band payments through the regular capture path.
type Capturer interface {
	CaptureOrder(ctx context.Context, orderID, providerOrderID string) (*order.CaptureOrderResult, error)
	RefundOrder(ctx context.Context, orderID string, amount float64) error
}

type Handler struct {
	DB     OrderDB
	Orders Capturer
	Ledger storage.Store
	Logger *logger.Logger
}

func NewHandler(database OrderDB, orders Capturer, ledger storage.Store, log *logger.Logger) *Handler {
	return &Handler{DB: database, Orders: orders, Ledger: ledger, Logger: log}
}

// RegisterRoutes mounts the admin API on a gin router group. The group is
// expected to carry the OIDC guard already.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/orders", h.ListOrders)
	group.GET("/orders/:id", h.GetOrder)
	group.GET("/orders/:id/payments", h.ListPayments)
	group.PUT("/orders/:id", h.UpdateOrder)
	group.POST("/orders/:id/confirm-bank-transfer", h.ConfirmBankTransfer)
	group.POST("/orders/:id/refund", h.RefundOrder)
}

// ListOrders returns the newest orders first, paginated.
func (h *Handler) ListOrders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	orders, err := h.DB.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListOrders: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list orders", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Orders", orders))
}

func (h *Handler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	orderData, err := h.DB.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", ""))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load order", err.Error()))
		return
	}
	items, err := h.DB.GetItemsByOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load order items", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Order", models.OrderWithItems{Order: *orderData, Items: items}))
}

// ListPayments returns the ledger trail for one order: every capture and
// refund row, oldest first.
func (h *Handler) ListPayments(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.DB.GetOrderByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", ""))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load order", err.Error()))
		return
	}

	payments, err := h.Ledger.GetByOrderID(c.Request.Context(), id)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ListPayments %s: %v", id, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load payments", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payments", payments))
}

// UpdateOrder applies a partial status/note/amount patch. Unknown status
// values are rejected before anything is written, and the stored total is
// recomputed whenever a money field changes.
func (h *Handler) UpdateOrder(c *gin.Context) {
	id := c.Param("id")

	var patch db.AdminUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	updated, err := h.DB.UpdateAdmin(c.Request.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", ""))
		case errors.Is(err, db.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid status value", err.Error()))
		default:
			h.Logger.Error("ADMIN", fmt.Sprintf("UpdateOrder %s: %v", id, err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to update order", err.Error()))
		}
		return
	}

	h.Logger.LogOrder("ADMIN", updated.OrderNumber, "Order updated by admin")
	c.JSON(http.StatusOK, gin.H{"success": true, "order": updated})
}

// ConfirmBankTransfer marks a bank-transfer order paid once the transfer
// shows up on the account. Runs the normal capture path so the ledger row,
// coupon consumption and confirmation email all happen exactly as they would
// for an online payment.
func (h *Handler) ConfirmBankTransfer(c *gin.Context) {
	id := c.Param("id")

	orderData, err := h.DB.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", ""))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load order", err.Error()))
		return
	}
	if orderData.PaymentMethod != payment.ProviderBankTransfer {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Not a bank transfer order", ""))
		return
	}

	result, err := h.Orders.CaptureOrder(c.Request.Context(), orderData.ID, orderData.PayPalOrderID)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("ConfirmBankTransfer %s: %v", id, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to confirm transfer", err.Error()))
		return
	}

	h.Logger.LogOrder("ADMIN", result.OrderNumber, "Bank transfer confirmed")
	c.JSON(http.StatusOK, utils.SuccessResponse("Bank transfer confirmed", result))
}

// RefundOrder refunds a captured payment; amount 0 means a full refund.
func (h *Handler) RefundOrder(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.Amount < 0 {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Amount cannot be negative", ""))
		return
	}

	if err := h.Orders.RefundOrder(c.Request.Context(), id, req.Amount); err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", ""))
		case errors.Is(err, order.ErrNotRefundable):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order is not refundable", err.Error()))
		default:
			h.Logger.Error("ADMIN", fmt.Sprintf("RefundOrder %s: %v", id, err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Refund failed", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Refund processed", nil))
}
