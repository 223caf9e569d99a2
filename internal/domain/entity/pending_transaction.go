package entity

import (
	"crypto/rand"
	"math/big"
	"time"

	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// TransactionKind distinguishes what a cleared payment pays for
type TransactionKind string

const (
	KindTopUp    TransactionKind = "topup"
	KindPurchase TransactionKind = "purchase"
)

// PendingTTL is how long a QR code stays valid after creation
const PendingTTL = 5 * time.Minute

// paymentCodeAlphabet is the character set for transfer memo codes.
// 36 characters at length 8 gives ~2.8e12 possible codes.
const (
	paymentCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	paymentCodeLength   = 8
)

// PendingTransaction is one unfulfilled payment intent waiting for the bank
// feed to confirm the transfer. Records are immutable after creation: the
// reconciler only ever reads them and removes them.
type PendingTransaction struct {
	ID        string          // Opaque unique identifier
	Kind      TransactionKind // What the payment pays for
	UserID    string          // Owner of the intent
	ChatID    string          // Where notifications about this intent go
	Amount    int64           // Expected credit amount in minor units
	Code      string          // Transfer memo code embedded in the QR
	CreatedAt time.Time
	ExpiresAt time.Time

	// Purchase-only fields
	ProductID   string
	ProductName string
	Quantity    int
}

// NewPendingTopUp creates a top-up intent with a fresh expiry window.
func NewPendingTopUp(id, userID, chatID string, amount int64, code string, timeProvider coreport.TimeProvider) (*PendingTransaction, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}
	if err := ValidateTopUpAmount(amount); err != nil {
		return nil, err
	}

	now := timeProvider.Now()
	return &PendingTransaction{
		ID:        id,
		Kind:      KindTopUp,
		UserID:    userID,
		ChatID:    chatID,
		Amount:    amount,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(PendingTTL),
	}, nil
}

// NewPendingPurchase creates a purchase intent. The amount is the full price
// for the requested quantity; availability is re-checked at fulfillment time.
func NewPendingPurchase(id, userID, chatID string, product *Product, quantity int, code string, timeProvider coreport.TimeProvider) (*PendingTransaction, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}
	if product == nil {
		return nil, errs.ErrProductNotFound
	}
	if quantity <= 0 {
		return nil, errs.ErrInvalidQuantity
	}

	amount := product.Price * int64(quantity)
	if err := ValidatePositiveAmount(amount); err != nil {
		return nil, err
	}

	now := timeProvider.Now()
	return &PendingTransaction{
		ID:          id,
		Kind:        KindPurchase,
		UserID:      userID,
		ChatID:      chatID,
		Amount:      amount,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(PendingTTL),
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
	}, nil
}

// IsExpired reports whether the intent's QR window has closed.
func (t *PendingTransaction) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// GeneratePaymentCode returns a random 8-character transfer memo code drawn
// from A-Z0-9.
func GeneratePaymentCode() string {
	max := big.NewInt(int64(len(paymentCodeAlphabet)))
	buf := make([]byte, paymentCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform RNG is broken; nothing
			// sensible to do but stop.
			panic("payment code generation: " + err.Error())
		}
		buf[i] = paymentCodeAlphabet[n.Int64()]
	}
	return string(buf)
}
