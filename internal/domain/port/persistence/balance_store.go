package persistence

import (
	"context"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
)

// BalanceStore owns per-user balances and their capped history.
type BalanceStore interface {
	// Get returns the user's balance record. Unknown users get a zero-value
	// balance, not an error.
	Get(ctx context.Context, userID string) (*entity.UserBalance, error)

	// ApplyChange atomically applies a signed balance change and appends a
	// history entry. The read-modify-write is a single storage transaction.
	//
	// Possible errors:
	// - ErrInsufficientBalance: a debit would take the balance negative
	// - ErrStorage: persistence failure
	ApplyChange(ctx context.Context, userID string, amount int64, description string) (*entity.UserBalance, error)
}
