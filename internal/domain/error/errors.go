package error

import (
	"errors"
	"fmt"
)

// Error codes for standardized API responses
const (
	// 4xxx - Client errors
	CodeInvalidRequest         = 4000
	CodeInvalidAmount          = 4001
	CodeInvalidQuantity        = 4002
	CodeInvalidUserID          = 4003
	CodeDuplicateActive        = 4004
	CodeInsufficientBalance    = 4005
	CodeInsufficientInventory  = 4006
	CodeProductNotFound        = 4040
	CodeNoPendingTransaction   = 4041
	CodeTransactionNotFound    = 4042

	// 5xxx - Server errors
	CodeInternalServer = 5000
	CodeStorage        = 5001
)

// Base error types
var (
	// ErrInvalidRequest is returned when a request body fails to bind
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidAmount is returned when a payment amount is outside the accepted range
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidQuantity is returned when a purchase quantity is not a positive integer
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidUserID is returned when the user ID is empty
	ErrInvalidUserID = errors.New("user ID cannot be empty")

	// ErrDuplicateActiveTransaction is returned when the user already holds an
	// active pending transaction
	ErrDuplicateActiveTransaction = errors.New("user already has an active pending transaction")

	// ErrNoPendingTransaction is returned when a cancel finds nothing to cancel
	ErrNoPendingTransaction = errors.New("no pending transaction for user")

	// ErrTransactionNotFound is returned when the requested pending transaction doesn't exist
	ErrTransactionNotFound = errors.New("pending transaction not found")

	// ErrProductNotFound is returned when the requested product doesn't exist
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientInventory is returned when fewer items remain than requested
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrInsufficientBalance is returned when a debit would take a balance negative
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyProcessed is returned when a feed refNo has already been reconciled.
	// Callers treat it as success, not failure.
	ErrAlreadyProcessed = errors.New("statement reference already processed")

	// ErrFetchFailed is returned when every statement feed endpoint failed this
	// cycle. Never surfaced to users; the next cycle simply retries.
	ErrFetchFailed = errors.New("all statement feed endpoints failed")

	// ErrStorage is returned for unexpected persistence failures
	ErrStorage = errors.New("storage error")

	// ErrInternalServer is returned for unexpected server-side errors
	ErrInternalServer = errors.New("internal server error")
)

// ErrorCode returns standardized error codes for known errors
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrInvalidQuantity):
		return CodeInvalidQuantity
	case errors.Is(err, ErrInvalidUserID):
		return CodeInvalidUserID
	case errors.Is(err, ErrDuplicateActiveTransaction):
		return CodeDuplicateActive
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrInsufficientInventory):
		return CodeInsufficientInventory
	case errors.Is(err, ErrProductNotFound):
		return CodeProductNotFound
	case errors.Is(err, ErrNoPendingTransaction):
		return CodeNoPendingTransaction
	case errors.Is(err, ErrTransactionNotFound):
		return CodeTransactionNotFound
	case errors.Is(err, ErrStorage):
		return CodeStorage
	default:
		return CodeInternalServer
	}
}

// InsufficientBalanceError carries the balance context of a rejected debit
type InsufficientBalanceError struct {
	UserID   string
	Required int64
	Current  int64
}

// Error implements the error interface
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: required %d, available %d",
		e.UserID, e.Required, e.Current)
}

// Is checks if the target error is an ErrInsufficientBalance
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// LogFields returns a map of fields for structured logging
func (e *InsufficientBalanceError) LogFields() map[string]any {
	return map[string]any{
		"error_type":      "insufficient_balance",
		"user_id":         e.UserID,
		"required":        e.Required,
		"current_balance": e.Current,
		"error_code":      CodeInsufficientBalance,
	}
}

// NewInsufficientBalanceError creates a new detailed insufficient balance error
func NewInsufficientBalanceError(userID string, required, current int64) error {
	return &InsufficientBalanceError{UserID: userID, Required: required, Current: current}
}

// InsufficientInventoryError carries the stock context of a rejected reservation
type InsufficientInventoryError struct {
	ProductID string
	Requested int
	Available int
}

// Error implements the error interface
func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is checks if the target error is an ErrInsufficientInventory
func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// LogFields returns a map of fields for structured logging
func (e *InsufficientInventoryError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "insufficient_inventory",
		"product_id": e.ProductID,
		"requested":  e.Requested,
		"available":  e.Available,
		"error_code": CodeInsufficientInventory,
	}
}

// NewInsufficientInventoryError creates a new detailed insufficient inventory error
func NewInsufficientInventoryError(productID string, requested, available int) error {
	return &InsufficientInventoryError{ProductID: productID, Requested: requested, Available: available}
}

// ReconcileError wraps a per-intent failure inside a reconciliation cycle so
// the cycle can log it and keep evaluating the remaining intents.
type ReconcileError struct {
	TransactionID string
	UserID        string
	Step          string
	Err           error
}

// Error implements the error interface
func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile failed for transaction %s (user %s) at %s: %v",
		e.TransactionID, e.UserID, e.Step, e.Err)
}

// Unwrap returns the underlying error
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// LogFields returns a map of fields for structured logging
func (e *ReconcileError) LogFields() map[string]any {
	return map[string]any{
		"error_type":     "reconcile_error",
		"transaction_id": e.TransactionID,
		"user_id":        e.UserID,
		"step":           e.Step,
		"error":          e.Err.Error(),
	}
}

// NewReconcileError creates a per-intent reconciliation error
func NewReconcileError(transactionID, userID, step string, err error) error {
	return &ReconcileError{TransactionID: transactionID, UserID: userID, Step: step, Err: err}
}

// IsDuplicateActiveError checks if the error is a duplicate active transaction error
func IsDuplicateActiveError(err error) bool {
	return errors.Is(err, ErrDuplicateActiveTransaction)
}

// IsInsufficientBalanceError checks if the error is related to insufficient balance
func IsInsufficientBalanceError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsInsufficientInventoryError checks if the error is related to insufficient stock
func IsInsufficientInventoryError(err error) bool {
	return errors.Is(err, ErrInsufficientInventory)
}

// IsNotFoundError checks if the error is any "not found" type of error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrNoPendingTransaction) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsValidationError checks if the error is a request validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidUserID)
}
