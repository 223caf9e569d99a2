package persistence

import (
	"context"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
)

// InventoryStore owns products and their credential-pair inventory.
type InventoryStore interface {
	// ListProducts returns all products ordered by ID
	ListProducts(ctx context.Context) ([]*entity.Product, error)

	// GetProduct returns a product by ID
	//
	// Possible errors:
	// - ErrProductNotFound
	GetProduct(ctx context.Context, id string) (*entity.Product, error)

	// CreateProduct adds a product with an empty inventory and returns it with
	// its assigned sequential ID
	CreateProduct(ctx context.Context, name string, price int64) (*entity.Product, error)

	// UpdateProduct changes name and/or price. Empty name / negative price
	// leave the field untouched.
	UpdateProduct(ctx context.Context, id string, name string, price int64) (*entity.Product, error)

	// DeleteProduct removes a product and its inventory
	DeleteProduct(ctx context.Context, id string) error

	// AddItems appends credential pairs to a product's pool and returns how
	// many were added
	AddItems(ctx context.Context, productID string, items []entity.InventoryItem) (int, error)

	// CountAvailable returns how many unsold items a product has
	CountAvailable(ctx context.Context, productID string) (int, error)

	// ReserveItems atomically marks quantity unsold items as sold to the user
	// and returns them. No item is touched when fewer than quantity remain.
	//
	// Possible errors:
	// - ErrProductNotFound
	// - ErrInsufficientInventory
	ReserveItems(ctx context.Context, productID string, quantity int, userID string) ([]entity.InventoryItem, error)
}
