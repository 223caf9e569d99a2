package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// TransactionStore implements persistence.TransactionStore using GORM.
type TransactionStore struct {
	db           *gorm.DB
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewTransactionStore creates a Postgres-backed transaction store.
func NewTransactionStore(db *gorm.DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *TransactionStore {
	return &TransactionStore{db: db, timeProvider: timeProvider, logger: logger}
}

// CreatePending inserts a new intent. The unique index on user_id turns a
// concurrent second create into a duplicate-key error, which maps to
// ErrDuplicateActiveTransaction.
func (s *TransactionStore) CreatePending(ctx context.Context, txn *entity.PendingTransaction) error {
	model := toModel(txn)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapError(err, errs.ErrTransactionNotFound)
	}
	return nil
}

// GetByUser returns the user's active intent, or nil.
func (s *TransactionStore) GetByUser(ctx context.Context, userID string) (*entity.PendingTransaction, error) {
	var model PendingTransaction
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get by user: %s", errs.ErrStorage, err.Error())
	}
	return toEntity(&model), nil
}

// GetByID returns the intent with the given ID, or nil.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (*entity.PendingTransaction, error) {
	var model PendingTransaction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get by id: %s", errs.ErrStorage, err.Error())
	}
	return toEntity(&model), nil
}

// ListAll returns every pending intent.
func (s *TransactionStore) ListAll(ctx context.Context) ([]*entity.PendingTransaction, error) {
	var models []PendingTransaction
	if err := s.db.WithContext(ctx).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: list pending: %s", errs.ErrStorage, err.Error())
	}
	intents := make([]*entity.PendingTransaction, 0, len(models))
	for i := range models {
		intents = append(intents, toEntity(&models[i]))
	}
	return intents, nil
}

// Remove deletes an intent, reporting whether it was present.
func (s *TransactionStore) Remove(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&PendingTransaction{})
	if result.Error != nil {
		return false, fmt.Errorf("%w: remove pending: %s", errs.ErrStorage, result.Error.Error())
	}
	return result.RowsAffected > 0, nil
}

// GetRef returns the dedup ledger entry for a refNo, or nil when absent.
func (s *TransactionStore) GetRef(ctx context.Context, refNo string) (*entity.ProcessedRefEntry, error) {
	var model ProcessedRef
	err := s.db.WithContext(ctx).Where("ref_no = ?", refNo).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ref lookup: %s", errs.ErrStorage, err.Error())
	}
	return &entity.ProcessedRefEntry{
		RefNo:         model.RefNo,
		TransactionID: model.TransactionID,
		CreatedAt:     model.CreatedAt,
		ExpiresAt:     model.ExpiresAt,
	}, nil
}

// RecordRef inserts a ledger entry, doing nothing when the refNo is already
// present so the original attribution and expiry survive retries.
func (s *TransactionStore) RecordRef(ctx context.Context, refNo, transactionID string) error {
	now := s.timeProvider.Now()
	model := ProcessedRef{
		RefNo:         refNo,
		TransactionID: transactionID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(entity.ProcessedRefTTL),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("%w: record ref: %s", errs.ErrStorage, err.Error())
	}
	return nil
}

// SweepExpiredRefs drops ledger entries past their TTL.
func (s *TransactionStore) SweepExpiredRefs(ctx context.Context, now time.Time) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&ProcessedRef{})
	if result.Error != nil {
		return 0, fmt.Errorf("%w: sweep refs: %s", errs.ErrStorage, result.Error.Error())
	}
	return int(result.RowsAffected), nil
}

func toModel(txn *entity.PendingTransaction) PendingTransaction {
	return PendingTransaction{
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

func toEntity(model *PendingTransaction) *entity.PendingTransaction {
	return &entity.PendingTransaction{
		ID:          model.ID,
		Kind:        entity.TransactionKind(model.Kind),
		UserID:      model.UserID,
		ChatID:      model.ChatID,
		Amount:      model.Amount,
		Code:        model.Code,
		CreatedAt:   model.CreatedAt,
		ExpiresAt:   model.ExpiresAt,
		ProductID:   model.ProductID,
		ProductName: model.ProductName,
		Quantity:    model.Quantity,
	}
}
