package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/domain/port/persistence"
)

// Fulfiller applies the committed effect of a matched payment. Once the
// reconciler has recorded the refNo, exactly one of three things happens
// here: the balance is credited, the goods are delivered, or the payment is
// refunded to the balance. Notification failures after the committing state
// change are logged and never rolled back.
type Fulfiller struct {
	balances    persistence.BalanceStore
	inventory   persistence.InventoryStore
	notifier    coreport.Notifier
	logger      coreport.Logger
	adminChatID string
}

// NewFulfiller creates a Fulfiller. adminChatID may be empty, in which case
// sale notices are skipped.
func NewFulfiller(
	balances persistence.BalanceStore,
	inventory persistence.InventoryStore,
	notifier coreport.Notifier,
	logger coreport.Logger,
	adminChatID string,
) *Fulfiller {
	return &Fulfiller{
		balances:    balances,
		inventory:   inventory,
		notifier:    notifier,
		logger:      logger,
		adminChatID: adminChatID,
	}
}

// FulfillTopUp credits the paid amount to the user's balance. Crediting is a
// local state update and cannot lose the payment; only the store erroring is
// a failure, and the caller keeps the intent's refNo recorded either way.
func (f *Fulfiller) FulfillTopUp(ctx context.Context, intent *entity.PendingTransaction) error {
	balance, err := f.balances.ApplyChange(ctx, intent.UserID, intent.Amount,
		fmt.Sprintf("Top-up - code: %s", intent.Code))
	if err != nil {
		return err
	}

	f.logger.Info("Top-up fulfilled", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        intent.UserID,
		"amount":         intent.Amount,
		"new_balance":    balance.Balance,
	})

	f.notify(ctx, intent.ChatID, fmt.Sprintf(
		"Top-up successful!\nAmount: %d\nCode: %s\nCurrent balance: %d",
		intent.Amount, intent.Code, balance.Balance))
	return nil
}

// FulfillPurchase delivers the purchased credentials, or refunds the paid
// amount to the balance when stock ran out while the QR was outstanding.
// Both branches are terminal: the caller removes the intent after either.
func (f *Fulfiller) FulfillPurchase(ctx context.Context, intent *entity.PendingTransaction) error {
	items, err := f.inventory.ReserveItems(ctx, intent.ProductID, intent.Quantity, intent.UserID)
	if err != nil {
		if errs.IsInsufficientInventoryError(err) || errs.IsNotFoundError(err) {
			return f.refund(ctx, intent, err)
		}
		return err
	}

	f.logger.Info("Purchase fulfilled", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        intent.UserID,
		"product_id":     intent.ProductID,
		"quantity":       intent.Quantity,
		"amount":         intent.Amount,
	})

	f.notify(ctx, intent.ChatID, deliveryMessage(intent, items))

	if f.adminChatID != "" {
		f.notify(ctx, f.adminChatID, fmt.Sprintf(
			"Sale: %dx %s for %d (user %s, code %s)",
			intent.Quantity, intent.ProductName, intent.Amount, intent.UserID, intent.Code))
	}
	return nil
}

// refund compensates a purchase whose goods could not be delivered. The user
// paid real money, so the amount goes back to their balance.
func (f *Fulfiller) refund(ctx context.Context, intent *entity.PendingTransaction, cause error) error {
	f.logger.Warn("Purchase cannot be delivered, refunding to balance", map[string]any{
		"transaction_id": intent.ID,
		"user_id":        intent.UserID,
		"product_id":     intent.ProductID,
		"quantity":       intent.Quantity,
		"amount":         intent.Amount,
		"cause":          cause.Error(),
	})

	if _, err := f.balances.ApplyChange(ctx, intent.UserID, intent.Amount,
		fmt.Sprintf("Refund - out of stock - code: %s", intent.Code)); err != nil {
		return fmt.Errorf("refund for transaction %s failed: %w", intent.ID, err)
	}

	f.notify(ctx, intent.ChatID, fmt.Sprintf(
		"Product out of stock.\nThe paid amount %d has been refunded to your balance.",
		intent.Amount))
	return nil
}

// notify sends best-effort; a failed send only produces a warning.
func (f *Fulfiller) notify(ctx context.Context, chatID, text string) {
	if err := f.notifier.Send(ctx, chatID, text); err != nil {
		f.logger.Warn("Notification delivery failed", map[string]any{
			"chat_id": chatID,
			"error":   err.Error(),
		})
	}
}

func deliveryMessage(intent *entity.PendingTransaction, items []entity.InventoryItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment confirmed - accounts delivered!\n")
	fmt.Fprintf(&b, "Product: %s\nQuantity: %d\nTotal: %d\nCode: %s\n\n",
		intent.ProductName, intent.Quantity, intent.Amount, intent.Code)
	for i, item := range items {
		fmt.Fprintf(&b, "%d. username: %s password: %s\n", i+1, item.Username, item.Password)
	}
	b.WriteString("\nPlease store these credentials safely.")
	return b.String()
}
