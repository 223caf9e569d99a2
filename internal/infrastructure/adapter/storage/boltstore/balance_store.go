package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bolt "github.com/boltdb/bolt"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// BalanceStore implements persistence.BalanceStore on BoltDB.
type BalanceStore struct {
	db           *DB
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewBalanceStore creates a bolt-backed balance store.
func NewBalanceStore(db *DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *BalanceStore {
	return &BalanceStore{db: db, timeProvider: timeProvider, logger: logger}
}

// Get returns the user's balance record, zero-valued when the user has no
// record yet.
func (s *BalanceStore) Get(ctx context.Context, userID string) (*entity.UserBalance, error) {
	balance := entity.NewUserBalance(userID)
	err := s.db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBalances).Get([]byte(userID))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, balance)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get balance: %s", errs.ErrStorage, err.Error())
	}
	balance.UserID = userID
	return balance, nil
}

// ApplyChange applies a signed balance change inside one bolt transaction.
// A rejected debit aborts the transaction, so the stored record is never
// half-updated.
func (s *BalanceStore) ApplyChange(ctx context.Context, userID string, amount int64, description string) (*entity.UserBalance, error) {
	balance := entity.NewUserBalance(userID)
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		if v := b.Get([]byte(userID)); v != nil {
			if err := json.Unmarshal(v, balance); err != nil {
				return err
			}
			balance.UserID = userID
		}

		if err := balance.Apply(amount, description, s.timeProvider.Now()); err != nil {
			return err
		}

		data, err := json.Marshal(balance)
		if err != nil {
			return err
		}
		return b.Put([]byte(userID), data)
	})
	if err != nil {
		if errors.Is(err, errs.ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: apply balance change: %s", errs.ErrStorage, err.Error())
	}

	s.logger.Debug("Balance updated", map[string]any{
		"user_id":     userID,
		"amount":      amount,
		"new_balance": balance.Balance,
	})
	return balance, nil
}
