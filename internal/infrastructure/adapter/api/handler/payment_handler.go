package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerr "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/domain/usecase/payment"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/dto"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService *payment.Service
	logger         coreport.Logger
}

// NewPaymentHandler creates a new payment handler instance
func NewPaymentHandler(paymentService *payment.Service, logger coreport.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// TopUp handles the POST /payment/topup endpoint
func (h *PaymentHandler) TopUp(c *gin.Context) {
	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid top-up request format", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidRequest),
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	receipt, err := h.paymentService.CreatePendingTopUp(c.Request.Context(), req.UserID, req.ChatID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toIntentResponse(receipt))
}

// Purchase handles the POST /payment/purchase endpoint
func (h *PaymentHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid purchase request format", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidRequest),
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	receipt, err := h.paymentService.CreatePendingPurchase(c.Request.Context(), req.UserID, req.ChatID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toIntentResponse(receipt))
}

// PurchaseWithBalance handles the POST /payment/purchase/balance endpoint
func (h *PaymentHandler) PurchaseWithBalance(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid balance purchase request format", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Code:    domainerr.ErrorCode(domainerr.ErrInvalidRequest),
			Message: "Invalid request format: " + err.Error(),
		})
		return
	}

	result, err := h.paymentService.PurchaseWithBalance(c.Request.Context(), req.UserID, req.ChatID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.BalancePurchaseResponse{
		ProductName: result.ProductName,
		Quantity:    result.Quantity,
		TotalPrice:  result.TotalPrice,
		NewBalance:  result.NewBalance,
		Items:       make([]dto.DeliveredItemResponse, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, dto.DeliveredItemResponse{
			Username: item.Username,
			Password: item.Password,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// CancelPending handles the DELETE /payment/pending/:userId endpoint
func (h *PaymentHandler) CancelPending(c *gin.Context) {
	userID := c.Param("userId")

	intent, err := h.paymentService.CancelActive(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CancelResponse{
		TransactionID: intent.ID,
		Code:          intent.Code,
		Cancelled:     true,
	})
}

// GetBalance handles the GET /user/:userId/balance endpoint
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID := c.Param("userId")

	balance, err := h.paymentService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.BalanceResponse{
		UserID:  balance.UserID,
		Balance: balance.Balance,
		History: make([]dto.BalanceEntryResponse, 0, len(balance.Transactions)),
	}
	for _, entry := range balance.Transactions {
		resp.History = append(resp.History, dto.BalanceEntryResponse{
			Type:        string(entry.Type),
			Amount:      entry.Amount,
			Description: entry.Description,
			CreatedAt:   entry.Timestamp,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func toIntentResponse(receipt *payment.IntentReceipt) dto.IntentResponse {
	return dto.IntentResponse{
		TransactionID: receipt.TransactionID,
		Code:          receipt.Code,
		QRURL:         receipt.QRURL,
		Amount:        receipt.Amount,
		ExpiresAt:     receipt.ExpiresAt,
	}
}
