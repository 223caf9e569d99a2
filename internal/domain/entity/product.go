package entity

import (
	"time"

	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
)

// InventoryItem is one sellable credential pair. Once sold the item and its
// attribution fields never change again.
type InventoryItem struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Sold     bool       `json:"sold"`
	SoldAt   *time.Time `json:"soldAt,omitempty"`
	SoldTo   string     `json:"soldTo,omitempty"`
}

// Product owns an ordered pool of inventory items.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     int64           `json:"price"` // Per unit, minor units
	CreatedAt time.Time       `json:"createdAt"`
	Items     []InventoryItem `json:"accounts"`
}

// AvailableCount returns how many items are still unsold.
func (p *Product) AvailableCount() int {
	count := 0
	for i := range p.Items {
		if !p.Items[i].Sold {
			count++
		}
	}
	return count
}

// Reserve marks the first quantity unsold items as sold to the given user and
// returns copies of them. Nothing is modified when fewer than quantity items
// remain.
func (p *Product) Reserve(quantity int, userID string, now time.Time) ([]InventoryItem, error) {
	if quantity <= 0 {
		return nil, errs.ErrInvalidQuantity
	}
	if p.AvailableCount() < quantity {
		return nil, errs.NewInsufficientInventoryError(p.ID, quantity, p.AvailableCount())
	}

	reserved := make([]InventoryItem, 0, quantity)
	for i := range p.Items {
		if len(reserved) == quantity {
			break
		}
		if p.Items[i].Sold {
			continue
		}
		soldAt := now
		p.Items[i].Sold = true
		p.Items[i].SoldAt = &soldAt
		p.Items[i].SoldTo = userID
		reserved = append(reserved, p.Items[i])
	}
	return reserved, nil
}
