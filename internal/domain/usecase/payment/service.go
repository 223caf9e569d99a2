package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/domain/port/persistence"
)

// IntentReceipt is what the chat layer needs to render a payment request.
type IntentReceipt struct {
	TransactionID string
	Code          string
	QRURL         string
	Amount        int64
	ExpiresAt     time.Time
}

// BalancePurchaseResult is the outcome of a purchase paid directly from the
// user's balance.
type BalancePurchaseResult struct {
	ProductName string
	Quantity    int
	TotalPrice  int64
	NewBalance  int64
	Items       []entity.InventoryItem
}

// Service exposes the payment-intent operations consumed by the chat-command
// layer. It owns no state of its own; every record lives in one of the
// injected stores.
type Service struct {
	transactions persistence.TransactionStore
	balances     persistence.BalanceStore
	inventory    persistence.InventoryStore
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
	qr           QRConfig
}

// NewService creates the payment intent service.
func NewService(
	transactions persistence.TransactionStore,
	balances persistence.BalanceStore,
	inventory persistence.InventoryStore,
	timeProvider coreport.TimeProvider,
	logger coreport.Logger,
	qr QRConfig,
) *Service {
	return &Service{
		transactions: transactions,
		balances:     balances,
		inventory:    inventory,
		timeProvider: timeProvider,
		logger:       logger,
		qr:           qr,
	}
}

// CreatePendingTopUp creates a top-up intent and returns the QR the user must
// pay. Fails with ErrDuplicateActiveTransaction while the user still holds an
// unexpired intent.
func (s *Service) CreatePendingTopUp(ctx context.Context, userID, chatID string, amount int64) (*IntentReceipt, error) {
	code := entity.GeneratePaymentCode()
	intent, err := entity.NewPendingTopUp(uuid.NewString(), userID, chatID, amount, code, s.timeProvider)
	if err != nil {
		return nil, err
	}

	if err := s.transactions.CreatePending(ctx, intent); err != nil {
		return nil, err
	}

	s.logger.Info("Top-up intent created", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        userID,
		"amount":         amount,
		"code":           code,
	})

	return s.receipt(intent), nil
}

// CreatePendingPurchase creates a QR-paid purchase intent for quantity units
// of a product. Availability is checked now to fail fast, and checked again
// at fulfillment time since stock may move while the QR is outstanding.
func (s *Service) CreatePendingPurchase(ctx context.Context, userID, chatID, productID string, quantity int) (*IntentReceipt, error) {
	if quantity <= 0 {
		return nil, errs.ErrInvalidQuantity
	}

	product, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available := product.AvailableCount()
	if available < quantity {
		return nil, errs.NewInsufficientInventoryError(productID, quantity, available)
	}

	code := entity.GeneratePaymentCode()
	intent, err := entity.NewPendingPurchase(uuid.NewString(), userID, chatID, product, quantity, code, s.timeProvider)
	if err != nil {
		return nil, err
	}

	if err := s.transactions.CreatePending(ctx, intent); err != nil {
		return nil, err
	}

	s.logger.Info("Purchase intent created", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        userID,
		"product_id":     productID,
		"quantity":       quantity,
		"amount":         intent.Amount,
		"code":           code,
	})

	return s.receipt(intent), nil
}

// CancelActive removes the user's active intent and returns it.
func (s *Service) CancelActive(ctx context.Context, userID string) (*entity.PendingTransaction, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}

	intent, err := s.transactions.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, errs.ErrNoPendingTransaction
	}

	removed, err := s.transactions.Remove(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	if !removed {
		// The reconciler got there first; from the user's point of view there
		// is nothing left to cancel.
		return nil, errs.ErrNoPendingTransaction
	}

	s.logger.Info("Pending transaction cancelled by user", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        userID,
		"kind":           string(intent.Kind),
	})

	return intent, nil
}

// GetBalance returns the user's balance record, zero-valued for unknown users.
func (s *Service) GetBalance(ctx context.Context, userID string) (*entity.UserBalance, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}
	return s.balances.Get(ctx, userID)
}

// PurchaseWithBalance buys quantity units paying from the stored balance,
// delivering the credentials immediately. The debit happens first; if the
// reservation then fails the debit is compensated so the user is made whole.
func (s *Service) PurchaseWithBalance(ctx context.Context, userID, chatID, productID string, quantity int) (*BalancePurchaseResult, error) {
	if userID == "" {
		return nil, errs.ErrInvalidUserID
	}
	if quantity <= 0 {
		return nil, errs.ErrInvalidQuantity
	}

	product, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available := product.AvailableCount()
	if available < quantity {
		return nil, errs.NewInsufficientInventoryError(productID, quantity, available)
	}

	total := product.Price * int64(quantity)
	balance, err := s.balances.ApplyChange(ctx, userID, -total,
		fmt.Sprintf("Purchase %dx %s", quantity, product.Name))
	if err != nil {
		return nil, err
	}

	items, err := s.inventory.ReserveItems(ctx, productID, quantity, userID)
	if err != nil {
		// Stock moved between the check and the reservation: give the money
		// back before reporting failure.
		if _, refundErr := s.balances.ApplyChange(ctx, userID, total,
			fmt.Sprintf("Refund - out of stock - %s", product.Name)); refundErr != nil {
			s.logger.Error("Refund after failed reservation failed", map[string]any{
				"user_id":    userID,
				"product_id": productID,
				"amount":     total,
				"error":      refundErr.Error(),
			})
		}
		return nil, err
	}

	s.logger.Info("Balance purchase completed", map[string]any{
		"user_id":     userID,
		"product_id":  productID,
		"quantity":    quantity,
		"total":       total,
		"new_balance": balance.Balance,
	})

	return &BalancePurchaseResult{
		ProductName: product.Name,
		Quantity:    quantity,
		TotalPrice:  total,
		NewBalance:  balance.Balance,
		Items:       items,
	}, nil
}

func (s *Service) receipt(intent *entity.PendingTransaction) *IntentReceipt {
	return &IntentReceipt{
		TransactionID: intent.ID,
		Code:          intent.Code,
		QRURL:         BuildQRURL(s.qr, intent.Amount, intent.Code),
		Amount:        intent.Amount,
		ExpiresAt:     intent.ExpiresAt,
	}
}
