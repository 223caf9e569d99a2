package dto

import "time"

// TopUpRequest represents the API request for creating a top-up payment
type TopUpRequest struct {
	UserID string `json:"userId" binding:"required"`
	ChatID string `json:"chatId" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// PurchaseRequest represents the API request for creating a purchase payment
type PurchaseRequest struct {
	UserID    string `json:"userId" binding:"required"`
	ChatID    string `json:"chatId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// IntentResponse represents a created pending payment the caller must pay
type IntentResponse struct {
	TransactionID string    `json:"transactionId"`
	Code          string    `json:"code"`
	QRURL         string    `json:"qrUrl"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// CancelResponse represents a cancelled pending payment
type CancelResponse struct {
	TransactionID string `json:"transactionId"`
	Code          string `json:"code"`
	Cancelled     bool   `json:"cancelled"`
}

// BalanceEntryResponse is one line of a user's balance history
type BalanceEntryResponse struct {
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BalanceResponse represents a user's balance and recent history
type BalanceResponse struct {
	UserID  string                 `json:"userId"`
	Balance int64                  `json:"balance"`
	History []BalanceEntryResponse `json:"history"`
}

// DeliveredItemResponse is one credential pair delivered by a purchase
type DeliveredItemResponse struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// BalancePurchaseResponse represents a purchase paid from the user's balance
type BalancePurchaseResponse struct {
	ProductName string                  `json:"productName"`
	Quantity    int                     `json:"quantity"`
	TotalPrice  int64                   `json:"totalPrice"`
	NewBalance  int64                   `json:"newBalance"`
	Items       []DeliveredItemResponse `json:"items"`
}
