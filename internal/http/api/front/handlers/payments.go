package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/payment"
	"gorm.io/gorm"
)

// PaymentHandler handles subscription plan and payment endpoints.
type PaymentHandler struct {
	db       *gorm.DB
	payments *payment.Service
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(db *gorm.DB, payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

// Plans lists active subscription plans.
func (h *PaymentHandler) Plans(c *gin.Context) {
	var plans []models.Plan
	if errList := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("price_tomans ASC").
		Find(&plans).Error; errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type planResponse struct {
		ID          uint64 `json:"id"`
		Name        string `json:"name"`
		Days        int    `json:"days"`
		PriceTomans int64  `json:"price_tomans"`
	}
	out := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planResponse{ID: plan.ID, Name: plan.Name, Days: plan.Days, PriceTomans: plan.PriceTomans})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// createPaymentRequest defines the request body for starting a payment.
type createPaymentRequest struct {
	PlanID       uint64 `json:"plan_id"`
	DiscountCode string `json:"discount_code"`
}

// Create starts a payment and returns the gateway redirect URL.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createPaymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	intent, errCreate := h.payments.CreateIntent(c.Request.Context(), userID, body.PlanID, body.DiscountCode)
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, payment.ErrPlanNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		case errors.Is(errCreate, payment.ErrInvalidDiscount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discount code"})
		case errors.Is(errCreate, payment.ErrGatewayRejected):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway rejected the request"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "create payment failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":      intent.Transaction.OrderID,
		"amount_tomans": intent.Transaction.AmountTomans,
		"redirect_url":  intent.RedirectURL,
	})
}

// callbackRequest defines the body the gateway posts back after payment.
type callbackRequest struct {
	OrderID string `json:"order_id" form:"order_id"`
	RefNum  string `json:"ref_num" form:"ref_num"`
	Sign    string `json:"sign" form:"sign"`
	Success bool   `json:"success" form:"success"`
}

// Callback settles a transaction after the gateway reports the outcome.
// The route is unauthenticated; the HMAC signature authenticates the gateway.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var body callbackRequest
	if errBind := c.ShouldBind(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if body.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order id"})
		return
	}

	tx, errSettle := h.payments.Settle(c.Request.Context(), body.OrderID, body.RefNum, body.Sign, body.Success)
	if errSettle != nil {
		switch {
		case errors.Is(errSettle, payment.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		case errors.Is(errSettle, payment.ErrBadSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid callback signature"})
		case errors.Is(errSettle, payment.ErrAlreadySettled):
			c.JSON(http.StatusConflict, gin.H{"error": "transaction already settled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settle payment failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": tx.OrderID,
		"status":   tx.Status,
	})
}

// History lists the user's transactions, newest first.
func (h *PaymentHandler) History(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, errList := h.payments.History(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type transactionResponse struct {
		OrderID      string  `json:"order_id"`
		PlanID       uint64  `json:"plan_id"`
		AmountTomans int64   `json:"amount_tomans"`
		Status       string  `json:"status"`
		RefNum       *string `json:"ref_num,omitempty"`
		CreatedAt    string  `json:"created_at"`
	}
	out := make([]transactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, transactionResponse{
			OrderID:      row.OrderID,
			PlanID:       row.PlanID,
			AmountTomans: row.AmountTomans,
			Status:       row.Status,
			RefNum:       row.RefNum,
			CreatedAt:    row.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}
