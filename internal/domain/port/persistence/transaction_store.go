package persistence

import (
	"context"
	"time"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
)

// TransactionStore owns pending payment intents and the processed-reference
// dedup ledger.
type TransactionStore interface {
	// CreatePending persists a new intent. The duplicate-active check and the
	// write happen inside one storage transaction so two concurrent creates
	// for the same user cannot both succeed.
	//
	// Possible errors:
	// - ErrDuplicateActiveTransaction: the user already holds an active intent
	// - ErrStorage: persistence failure
	CreatePending(ctx context.Context, txn *entity.PendingTransaction) error

	// GetByUser returns the user's active intent, or nil when there is none
	GetByUser(ctx context.Context, userID string) (*entity.PendingTransaction, error)

	// GetByID returns the intent with the given ID, or nil when not found
	GetByID(ctx context.Context, id string) (*entity.PendingTransaction, error)

	// ListAll returns every pending intent. The reconciler snapshots this at
	// the top of each cycle.
	ListAll(ctx context.Context) ([]*entity.PendingTransaction, error)

	// Remove deletes an intent. Returns false when it was already gone.
	Remove(ctx context.Context, id string) (bool, error)

	// GetRef returns the dedup ledger entry for a feed refNo, or nil when the
	// refNo has never been recorded. The entry carries the transaction the
	// refNo was attributed to, so the reconciler can tell a true duplicate
	// from its own interrupted fulfillment.
	GetRef(ctx context.Context, refNo string) (*entity.ProcessedRefEntry, error)

	// RecordRef writes a refNo into the dedup ledger. Recording the same
	// refNo twice is a no-op, not an error.
	RecordRef(ctx context.Context, refNo, transactionID string) error

	// SweepExpiredRefs removes ledger entries past their TTL and returns how
	// many were dropped.
	SweepExpiredRefs(ctx context.Context, now time.Time) (int, error)
}
