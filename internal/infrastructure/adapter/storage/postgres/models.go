package postgres

import (
	"time"
)

// PendingTransaction is the relational model for a pending payment intent.
// The unique index on UserID is what enforces the one-active-intent-per-user
// rule under concurrent creates.
type PendingTransaction struct {
	ID          string    `gorm:"primaryKey"`
	Kind        string    `gorm:"not null"`
	UserID      string    `gorm:"uniqueIndex;not null"`
	ChatID      string    `gorm:"not null"`
	Amount      int64     `gorm:"not null"`
	Code        string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null"`
	ProductID   string
	ProductName string
	Quantity    int
}

// TableName specifies the table name for PendingTransaction
func (PendingTransaction) TableName() string {
	return "pending_transactions"
}

// ProcessedRef is the relational model for a dedup ledger entry.
type ProcessedRef struct {
	RefNo         string    `gorm:"primaryKey"`
	TransactionID string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	ExpiresAt     time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for ProcessedRef
func (ProcessedRef) TableName() string {
	return "ref_ledger"
}

// Balance is the relational model for a user's balance.
type Balance struct {
	UserID    string    `gorm:"primaryKey"`
	Balance   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for Balance
func (Balance) TableName() string {
	return "balances"
}

// BalanceEntry is one history line of a balance. History is trimmed to the
// most recent entries after every write.
type BalanceEntry struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      string    `gorm:"index;not null"`
	Amount      int64     `gorm:"not null"`
	Description string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"not null"`
	Type        string    `gorm:"not null"`
}

// TableName specifies the table name for BalanceEntry
func (BalanceEntry) TableName() string {
	return "balance_entries"
}

// Product is the relational model for a sellable product. The serial primary
// key provides the sequential product IDs the chat layer shows to users.
type Product struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"not null"`
	Price     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

// InventoryItem is one credential pair in a product's pool.
type InventoryItem struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID uint64 `gorm:"index;not null"`
	Username  string `gorm:"not null"`
	Password  string `gorm:"not null"`
	Sold      bool   `gorm:"not null;default:false;index"`
	SoldAt    *time.Time
	SoldTo    string
}

// TableName specifies the table name for InventoryItem
func (InventoryItem) TableName() string {
	return "inventory_items"
}
