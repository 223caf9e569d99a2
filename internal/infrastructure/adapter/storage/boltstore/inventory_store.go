package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	bolt "github.com/boltdb/bolt"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

var keyNextProductID = []byte("next_product_id")

// InventoryStore implements persistence.InventoryStore on BoltDB.
type InventoryStore struct {
	db           *DB
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewInventoryStore creates a bolt-backed inventory store.
func NewInventoryStore(db *DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *InventoryStore {
	return &InventoryStore{db: db, timeProvider: timeProvider, logger: logger}
}

// ListProducts returns all products in ascending numeric ID order.
func (s *InventoryStore) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	var products []*entity.Product
	err := s.db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProducts).ForEach(func(_, v []byte) error {
			var p entity.Product
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			products = append(products, &p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %s", errs.ErrStorage, err.Error())
	}

	// Bucket order is lexicographic; product IDs are decimal strings.
	sort.Slice(products, func(i, j int) bool {
		a, _ := strconv.Atoi(products[i].ID)
		b, _ := strconv.Atoi(products[j].ID)
		return a < b
	})
	return products, nil
}

// GetProduct returns a product by ID.
func (s *InventoryStore) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	var product *entity.Product
	err := s.db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketProducts).Get([]byte(id))
		if v == nil {
			return errs.ErrProductNotFound
		}
		var p entity.Product
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		product = &p
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get product: %s", errs.ErrStorage, err.Error())
	}
	return product, nil
}

// CreateProduct adds a product with the next sequential ID and an empty pool.
func (s *InventoryStore) CreateProduct(ctx context.Context, name string, price int64) (*entity.Product, error) {
	var product *entity.Product
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)

		next := 1
		if v := meta.Get(keyNextProductID); v != nil {
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return err
			}
			next = n
		}

		p := entity.Product{
			ID:        strconv.Itoa(next),
			Name:      name,
			Price:     price,
			CreatedAt: s.timeProvider.Now(),
			Items:     []entity.InventoryItem{},
		}

		data, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketProducts).Put([]byte(p.ID), data); err != nil {
			return err
		}
		if err := meta.Put(keyNextProductID, []byte(strconv.Itoa(next+1))); err != nil {
			return err
		}
		product = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create product: %s", errs.ErrStorage, err.Error())
	}

	s.logger.Info("Product created", map[string]any{
		"product_id": product.ID,
		"name":       name,
		"price":      price,
	})
	return product, nil
}

// UpdateProduct changes name and/or price; empty name or negative price keep
// the current value.
func (s *InventoryStore) UpdateProduct(ctx context.Context, id string, name string, price int64) (*entity.Product, error) {
	var product *entity.Product
	err := s.update(id, func(p *entity.Product) error {
		if name != "" {
			p.Name = name
		}
		if price >= 0 {
			p.Price = price
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product and its inventory.
func (s *InventoryStore) DeleteProduct(ctx context.Context, id string) error {
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		if b.Get([]byte(id)) == nil {
			return errs.ErrProductNotFound
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete product: %s", errs.ErrStorage, err.Error())
	}
	return nil
}

// AddItems appends credential pairs to a product's pool.
func (s *InventoryStore) AddItems(ctx context.Context, productID string, items []entity.InventoryItem) (int, error) {
	added := 0
	err := s.update(productID, func(p *entity.Product) error {
		p.Items = append(p.Items, items...)
		added = len(items)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Inventory items added", map[string]any{
		"product_id": productID,
		"added":      added,
	})
	return added, nil
}

// CountAvailable returns how many unsold items a product has.
func (s *InventoryStore) CountAvailable(ctx context.Context, productID string) (int, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.AvailableCount(), nil
}

// ReserveItems marks quantity unsold items as sold inside one bolt
// transaction. An insufficient pool aborts the transaction with nothing
// marked.
func (s *InventoryStore) ReserveItems(ctx context.Context, productID string, quantity int, userID string) ([]entity.InventoryItem, error) {
	var reserved []entity.InventoryItem
	err := s.update(productID, func(p *entity.Product) error {
		items, err := p.Reserve(quantity, userID, s.timeProvider.Now())
		if err != nil {
			return err
		}
		reserved = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory reserved", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"user_id":    userID,
	})
	return reserved, nil
}

// update loads a product, applies fn, and writes it back in one transaction.
// Domain errors from fn pass through untouched; everything else is wrapped
// as a storage error.
func (s *InventoryStore) update(productID string, fn func(*entity.Product) error) error {
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		v := b.Get([]byte(productID))
		if v == nil {
			return errs.ErrProductNotFound
		}

		var p entity.Product
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}

		data, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		return b.Put([]byte(productID), data)
	})
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) ||
			errors.Is(err, errs.ErrInsufficientInventory) ||
			errors.Is(err, errs.ErrInvalidQuantity) {
			return err
		}
		return fmt.Errorf("%w: update product: %s", errs.ErrStorage, err.Error())
	}
	return nil
}
