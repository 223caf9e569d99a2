package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// pendingRecord is the stored form of a pending transaction.
type pendingRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	UserID      string    `json:"userId"`
	ChatID      string    `json:"chatId"`
	Amount      int64     `json:"amount"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	ProductID   string    `json:"productId,omitempty"`
	ProductName string    `json:"productName,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
}

// refRecord is the stored form of a dedup ledger entry.
type refRecord struct {
	TransactionID string    `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// TransactionStore implements persistence.TransactionStore on BoltDB.
type TransactionStore struct {
	db           *DB
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewTransactionStore creates a bolt-backed transaction store.
func NewTransactionStore(db *DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *TransactionStore {
	return &TransactionStore{db: db, timeProvider: timeProvider, logger: logger}
}

// CreatePending persists a new intent. The duplicate-active scan and the put
// share one bolt transaction, so two concurrent creates for one user cannot
// both pass the guard.
func (s *TransactionStore) CreatePending(ctx context.Context, txn *entity.PendingTransaction) error {
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)

		var existing *pendingRecord
		if err := b.ForEach(func(_, v []byte) error {
			var rec pendingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.UserID == txn.UserID {
				existing = &rec
			}
			return nil
		}); err != nil {
			return err
		}
		if existing != nil {
			return errs.ErrDuplicateActiveTransaction
		}

		data, err := json.Marshal(toPendingRecord(txn))
		if err != nil {
			return err
		}
		return b.Put([]byte(txn.ID), data)
	})
	if err != nil {
		if errs.IsDuplicateActiveError(err) {
			return err
		}
		return fmt.Errorf("%w: create pending: %s", errs.ErrStorage, err.Error())
	}
	return nil
}

// GetByUser returns the user's active intent, or nil.
func (s *TransactionStore) GetByUser(ctx context.Context, userID string) (*entity.PendingTransaction, error) {
	var found *entity.PendingTransaction
	err := s.db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(_, v []byte) error {
			var rec pendingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.UserID == userID {
				found = rec.toEntity()
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get by user: %s", errs.ErrStorage, err.Error())
	}
	return found, nil
}

// GetByID returns the intent with the given ID, or nil.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (*entity.PendingTransaction, error) {
	var found *entity.PendingTransaction
	err := s.db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPending).Get([]byte(id))
		if v == nil {
			return nil
		}
		var rec pendingRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = rec.toEntity()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get by id: %s", errs.ErrStorage, err.Error())
	}
	return found, nil
}

// ListAll returns every pending intent.
func (s *TransactionStore) ListAll(ctx context.Context) ([]*entity.PendingTransaction, error) {
	var intents []*entity.PendingTransaction
	err := s.db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(_, v []byte) error {
			var rec pendingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			intents = append(intents, rec.toEntity())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list pending: %s", errs.ErrStorage, err.Error())
	}
	return intents, nil
}

// Remove deletes an intent, reporting whether it was present.
func (s *TransactionStore) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("%w: remove pending: %s", errs.ErrStorage, err.Error())
	}
	return removed, nil
}

// GetRef returns the dedup ledger entry for a refNo, or nil when absent.
func (s *TransactionStore) GetRef(ctx context.Context, refNo string) (*entity.ProcessedRefEntry, error) {
	var found *entity.ProcessedRefEntry
	err := s.db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRefs).Get([]byte(refNo))
		if v == nil {
			return nil
		}
		var rec refRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = &entity.ProcessedRefEntry{
			RefNo:         refNo,
			TransactionID: rec.TransactionID,
			CreatedAt:     rec.CreatedAt,
			ExpiresAt:     rec.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ref lookup: %s", errs.ErrStorage, err.Error())
	}
	return found, nil
}

// RecordRef writes a refNo into the dedup ledger. A refNo already present is
// left untouched so its original attribution and expiry survive retries.
func (s *TransactionStore) RecordRef(ctx context.Context, refNo, transactionID string) error {
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		if b.Get([]byte(refNo)) != nil {
			return nil
		}
		now := s.timeProvider.Now()
		data, err := json.Marshal(refRecord{
			TransactionID: transactionID,
			CreatedAt:     now,
			ExpiresAt:     now.Add(entity.ProcessedRefTTL),
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(refNo), data)
	})
	if err != nil {
		return fmt.Errorf("%w: record ref: %s", errs.ErrStorage, err.Error())
	}
	return nil
}

// SweepExpiredRefs drops ledger entries past their TTL.
func (s *TransactionStore) SweepExpiredRefs(ctx context.Context, now time.Time) (int, error) {
	swept := 0
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec refRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// A corrupt entry only ever blocks its own sweep; drop it.
				s.logger.Warn("Dropping unreadable ref ledger entry", map[string]any{
					"ref_no": string(k),
					"error":  err.Error(),
				})
				if err := c.Delete(); err != nil {
					return err
				}
				swept++
				continue
			}
			if now.After(rec.ExpiresAt) {
				if err := c.Delete(); err != nil {
					return err
				}
				swept++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: sweep refs: %s", errs.ErrStorage, err.Error())
	}
	return swept, nil
}

func toPendingRecord(txn *entity.PendingTransaction) pendingRecord {
	return pendingRecord{
		ID:          txn.ID,
		Kind:        string(txn.Kind),
		UserID:      txn.UserID,
		ChatID:      txn.ChatID,
		Amount:      txn.Amount,
		Code:        txn.Code,
		CreatedAt:   txn.CreatedAt,
		ExpiresAt:   txn.ExpiresAt,
		ProductID:   txn.ProductID,
		ProductName: txn.ProductName,
		Quantity:    txn.Quantity,
	}
}

func (r pendingRecord) toEntity() *entity.PendingTransaction {
	return &entity.PendingTransaction{
		ID:          r.ID,
		Kind:        entity.TransactionKind(r.Kind),
		UserID:      r.UserID,
		ChatID:      r.ChatID,
		Amount:      r.Amount,
		Code:        r.Code,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
	}
}
