package entity

import (
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
)

// Amounts are integer minor units (VND has no fractional unit). Limits match
// what the payment provider accepts for a single QR transfer.
const (
	MinTopUpAmount int64 = 10_000
	MaxTopUpAmount int64 = 10_000_000
)

// ValidateTopUpAmount checks that a top-up amount is within the accepted range.
func ValidateTopUpAmount(amount int64) error {
	if amount < MinTopUpAmount || amount > MaxTopUpAmount {
		return errs.ErrInvalidAmount
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is strictly positive.
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return errs.ErrInvalidAmount
	}
	return nil
}
