package entity

import (
	"time"

	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
)

// BalanceHistoryLimit caps the per-user transaction history to the most
// recent entries.
const BalanceHistoryLimit = 100

// BalanceEntryType tags the direction of a balance change
type BalanceEntryType string

const (
	EntryDeposit  BalanceEntryType = "deposit"
	EntryWithdraw BalanceEntryType = "withdraw"
)

// BalanceEntry is one line of a user's balance history.
type BalanceEntry struct {
	Amount      int64            `json:"amount"` // Signed: positive credit, negative debit
	Description string           `json:"description"`
	Timestamp   time.Time        `json:"timestamp"`
	Type        BalanceEntryType `json:"type"`
}

// UserBalance holds a user's balance in minor units together with a capped
// append-only history of changes.
type UserBalance struct {
	UserID       string         `json:"userId"`
	Balance      int64          `json:"balance"`
	Transactions []BalanceEntry `json:"transactions"`
}

// NewUserBalance returns a zero balance for a user with no record yet.
func NewUserBalance(userID string) *UserBalance {
	return &UserBalance{UserID: userID, Transactions: []BalanceEntry{}}
}

// Apply records a signed balance change. Debits that would take the balance
// negative are rejected; the stored record is untouched in that case.
func (b *UserBalance) Apply(amount int64, description string, now time.Time) error {
	if amount < 0 && b.Balance+amount < 0 {
		return errs.NewInsufficientBalanceError(b.UserID, -amount, b.Balance)
	}

	entryType := EntryDeposit
	if amount < 0 {
		entryType = EntryWithdraw
	}

	b.Balance += amount
	b.Transactions = append(b.Transactions, BalanceEntry{
		Amount:      amount,
		Description: description,
		Timestamp:   now,
		Type:        entryType,
	})

	// Keep only the most recent entries
	if len(b.Transactions) > BalanceHistoryLimit {
		b.Transactions = b.Transactions[len(b.Transactions)-BalanceHistoryLimit:]
	}
	return nil
}
