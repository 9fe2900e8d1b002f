package payments

import (
	"errors"
	"net/http"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"resuradar/internal/shared/server/middleware"
	"resuradar/internal/shared/server/respond"
)

var (
	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)
	registerOnce   sync.Once
)

// ValidOrderID reports whether id is accepted as a merchant order ID.
func ValidOrderID(id string) bool {
	return orderIDPattern.MatchString(id)
}

// RegisterValidators adds the orderid tag to gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("orderid", func(fl validator.FieldLevel) bool {
			return ValidOrderID(fl.Field().String())
		})
	})
}

type initiateRequest struct {
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	OrderID string  `json:"orderId" binding:"required,orderid"`
}

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	RegisterValidators()
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/initiate-payment", h.initiate)
	rg.GET("/verify-payment/:orderId", h.verify)
}

func (h *Handler) initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Amount and orderId are required", nil)
		return
	}
	tokenURL, err := h.Svc.Initiate(c.Request.Context(), middleware.UserIDFromContext(c), req.OrderID, req.Amount)
	if err != nil {
		writePaymentError(c, err, "Payment initiation failed")
		return
	}
	respond.OK(c, gin.H{"success": true, "tokenUrl": tokenURL})
}

func (h *Handler) verify(c *gin.Context) {
	orderID := c.Param("orderId")
	if !ValidOrderID(orderID) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Order ID is required", nil)
		return
	}
	status, err := h.Svc.Verify(c.Request.Context(), middleware.UserIDFromContext(c), orderID)
	if err != nil {
		writePaymentError(c, err, "Failed to verify payment")
		return
	}
	data := gin.H{
		"status":        status.State,
		"transactionId": nullable(status.TransactionID),
		"amount":        status.Amount,
		"errorCode":     nullable(status.ErrorCode),
		"expireAt":      status.ExpireAt,
	}
	respond.OK(c, gin.H{"success": true, "data": data})
}

func writePaymentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrAmountRequired), errors.Is(err, ErrOrderIDRequired):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, ErrDuplicateOrder):
		respond.Error(c, http.StatusConflict, "duplicate_order", "Order already exists", nil)
	case errors.Is(err, ErrOrderNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Order not found", nil)
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "payments_unavailable", "Payments are not configured", nil)
	case errors.Is(err, ErrGatewayUnavailable):
		respond.Error(c, http.StatusBadGateway, "gateway_error", fallback, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
