package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// InventoryStore implements persistence.InventoryStore using GORM.
type InventoryStore struct {
	db           *gorm.DB
	timeProvider coreport.TimeProvider
	logger       coreport.Logger
}

// NewInventoryStore creates a Postgres-backed inventory store.
func NewInventoryStore(db *gorm.DB, timeProvider coreport.TimeProvider, logger coreport.Logger) *InventoryStore {
	return &InventoryStore{db: db, timeProvider: timeProvider, logger: logger}
}

// ListProducts returns all products with their inventory, ordered by ID.
func (s *InventoryStore) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	var models []Product
	if err := s.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: list products: %s", errs.ErrStorage, err.Error())
	}

	products := make([]*entity.Product, 0, len(models))
	for i := range models {
		product, err := s.loadItems(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

// GetProduct returns a product with its inventory.
func (s *InventoryStore) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	numericID, err := parseProductID(id)
	if err != nil {
		return nil, err
	}

	var model Product
	err = s.db.WithContext(ctx).Where("id = ?", numericID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get product: %s", errs.ErrStorage, err.Error())
	}
	return s.loadItems(ctx, &model)
}

// CreateProduct inserts a product; the serial primary key assigns the next
// sequential ID.
func (s *InventoryStore) CreateProduct(ctx context.Context, name string, price int64) (*entity.Product, error) {
	model := Product{Name: name, Price: price, CreatedAt: s.timeProvider.Now()}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("%w: create product: %s", errs.ErrStorage, err.Error())
	}

	s.logger.Info("Product created", map[string]any{
		"product_id": strconv.FormatUint(model.ID, 10),
		"name":       name,
		"price":      price,
	})
	return s.loadItems(ctx, &model)
}

// UpdateProduct changes name and/or price; empty name or negative price keep
// the current value.
func (s *InventoryStore) UpdateProduct(ctx context.Context, id string, name string, price int64) (*entity.Product, error) {
	numericID, err := parseProductID(id)
	if err != nil {
		return nil, err
	}

	var model Product
	err = s.db.WithContext(ctx).Where("id = ?", numericID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: update product: %s", errs.ErrStorage, err.Error())
	}

	if name != "" {
		model.Name = name
	}
	if price >= 0 {
		model.Price = price
	}
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return nil, fmt.Errorf("%w: update product: %s", errs.ErrStorage, err.Error())
	}
	return s.loadItems(ctx, &model)
}

// DeleteProduct removes a product and its inventory.
func (s *InventoryStore) DeleteProduct(ctx context.Context, id string) error {
	numericID, err := parseProductID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", numericID).Delete(&Product{})
		if result.Error != nil {
			return fmt.Errorf("%w: delete product: %s", errs.ErrStorage, result.Error.Error())
		}
		if result.RowsAffected == 0 {
			return errs.ErrProductNotFound
		}
		if err := tx.Where("product_id = ?", numericID).Delete(&InventoryItem{}).Error; err != nil {
			return fmt.Errorf("%w: delete inventory: %s", errs.ErrStorage, err.Error())
		}
		return nil
	})
}

// AddItems appends credential pairs to a product's pool.
func (s *InventoryStore) AddItems(ctx context.Context, productID string, items []entity.InventoryItem) (int, error) {
	numericID, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	models := make([]InventoryItem, 0, len(items))
	for _, item := range items {
		models = append(models, InventoryItem{
			ProductID: numericID,
			Username:  item.Username,
			Password:  item.Password,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Where("id = ?", numericID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errs.ErrProductNotFound
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: add items: %s", errs.ErrStorage, err.Error())
	}

	s.logger.Info("Inventory items added", map[string]any{
		"product_id": productID,
		"added":      len(models),
	})
	return len(models), nil
}

// CountAvailable returns how many unsold items a product has.
func (s *InventoryStore) CountAvailable(ctx context.Context, productID string) (int, error) {
	numericID, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	var productCount int64
	if err := s.db.WithContext(ctx).Model(&Product{}).Where("id = ?", numericID).Count(&productCount).Error; err != nil {
		return 0, fmt.Errorf("%w: count available: %s", errs.ErrStorage, err.Error())
	}
	if productCount == 0 {
		return 0, errs.ErrProductNotFound
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&InventoryItem{}).
		Where("product_id = ? AND sold = false", numericID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count available: %s", errs.ErrStorage, err.Error())
	}
	return int(count), nil
}

// ReserveItems locks quantity unsold rows with FOR UPDATE and marks them
// sold in one database transaction, so concurrent reservations serialize.
func (s *InventoryStore) ReserveItems(ctx context.Context, productID string, quantity int, userID string) ([]entity.InventoryItem, error) {
	if quantity <= 0 {
		return nil, errs.ErrInvalidQuantity
	}
	numericID, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}

	now := s.timeProvider.Now()
	var reserved []entity.InventoryItem

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var productCount int64
		if err := tx.Model(&Product{}).Where("id = ?", numericID).Count(&productCount).Error; err != nil {
			return err
		}
		if productCount == 0 {
			return errs.ErrProductNotFound
		}

		var models []InventoryItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND sold = false", numericID).
			Order("id").
			Limit(quantity).
			Find(&models).Error
		if err != nil {
			return err
		}
		if len(models) < quantity {
			return errs.NewInsufficientInventoryError(productID, quantity, len(models))
		}

		ids := make([]uint64, 0, quantity)
		for i := range models {
			ids = append(ids, models[i].ID)
		}
		err = tx.Model(&InventoryItem{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"sold": true, "sold_at": now, "sold_to": userID}).Error
		if err != nil {
			return err
		}

		for i := range models {
			soldAt := now
			reserved = append(reserved, entity.InventoryItem{
				Username: models[i].Username,
				Password: models[i].Password,
				Sold:     true,
				SoldAt:   &soldAt,
				SoldTo:   userID,
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) || errors.Is(err, errs.ErrInsufficientInventory) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: reserve items: %s", errs.ErrStorage, err.Error())
	}

	s.logger.Info("Inventory reserved", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"user_id":    userID,
	})
	return reserved, nil
}

// loadItems attaches a product's inventory to its entity form.
func (s *InventoryStore) loadItems(ctx context.Context, model *Product) (*entity.Product, error) {
	var items []InventoryItem
	err := s.db.WithContext(ctx).
		Where("product_id = ?", model.ID).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load inventory: %s", errs.ErrStorage, err.Error())
	}

	product := &entity.Product{
		ID:        strconv.FormatUint(model.ID, 10),
		Name:      model.Name,
		Price:     model.Price,
		CreatedAt: model.CreatedAt,
		Items:     make([]entity.InventoryItem, 0, len(items)),
	}
	for i := range items {
		product.Items = append(product.Items, entity.InventoryItem{
			Username: items[i].Username,
			Password: items[i].Password,
			Sold:     items[i].Sold,
			SoldAt:   items[i].SoldAt,
			SoldTo:   items[i].SoldTo,
		})
	}
	return product, nil
}

// parseProductID validates the external string form of a product ID.
func parseProductID(id string) (uint64, error) {
	numericID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, errs.ErrProductNotFound
	}
	return numericID, nil
}
