package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// BalanceStore implements persistence.BalanceStore using GORM.
type BalanceStore struct {
	db           *gorm.DB
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewBalanceStore creates a Postgres-backed balance store.
func NewBalanceStore(db *gorm.DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *BalanceStore {
	return &BalanceStore{db: db, timeProvider: timeProvider, logger: logger}
}

// Get returns the user's balance with its most recent history, zero-valued
// when the user has no record yet.
func (s *BalanceStore) Get(ctx context.Context, userID string) (*entity.UserBalance, error) {
	balance := entity.NewUserBalance(userID)

	var model Balance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return balance, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get balance: %s", errs.ErrStorage, err.Error())
	}
	balance.Balance = model.Balance

	var entries []BalanceEntry
	err = s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc, id desc").
		Limit(entity.BalanceHistoryLimit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("%w: get balance history: %s", errs.ErrStorage, err.Error())
	}

	// Entries load newest-first; history reads oldest-first.
	for i := len(entries) - 1; i >= 0; i-- {
		balance.Transactions = append(balance.Transactions, entity.BalanceEntry{
			Amount:      entries[i].Amount,
			Description: entries[i].Description,
			Timestamp:   entries[i].Timestamp,
			Type:        entity.BalanceEntryType(entries[i].Type),
		})
	}
	return balance, nil
}

// ApplyChange applies a signed balance change in one database transaction,
// locking the balance row so concurrent changes serialize.
func (s *BalanceStore) ApplyChange(ctx context.Context, userID string, amount int64, description string) (*entity.UserBalance, error) {
	now := s.timeProvider.Now()
	var newBalance int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model Balance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			model = Balance{UserID: userID, Balance: 0, UpdatedAt: now}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if amount < 0 && model.Balance+amount < 0 {
			return errs.NewInsufficientBalanceError(userID, -amount, model.Balance)
		}

		model.Balance += amount
		model.UpdatedAt = now
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		newBalance = model.Balance

		entryType := entity.EntryDeposit
		if amount < 0 {
			entryType = entity.EntryWithdraw
		}
		if err := tx.Create(&BalanceEntry{
			UserID:      userID,
			Amount:      amount,
			Description: description,
			Timestamp:   now,
			Type:        string(entryType),
		}).Error; err != nil {
			return err
		}

		// Trim history beyond the cap
		return tx.Exec(`
			DELETE FROM balance_entries
			WHERE user_id = ? AND id NOT IN (
				SELECT id FROM balance_entries
				WHERE user_id = ?
				ORDER BY timestamp DESC, id DESC
				LIMIT ?
			)`, userID, userID, entity.BalanceHistoryLimit).Error
	})
	if err != nil {
		if errs.IsInsufficientBalanceError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: apply balance change: %s", errs.ErrStorage, err.Error())
	}

	s.logger.Debug("Balance updated", map[string]any{
		"user_id":     userID,
		"amount":      amount,
		"new_balance": newBalance,
	})
	return s.Get(ctx, userID)
}
