package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var _ ports.Inventory = (*Inventory)(nil)

// Inventory adjusts product stock with single-statement increments.
type Inventory struct {
	db *gorm.DB
}

func NewInventory(db *gorm.DB) *Inventory {
	return &Inventory{db: db}
}

func (i *Inventory) IncrementStock(ctx context.Context, productID string, amount int) error {
	if i == nil || i.db == nil {
		return errors.New("postgres inventory not configured")
	}
	result := i.db.WithContext(ctx).
		Model(&productRecord{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", amount),
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ports.ErrProductNotFound, productID)
	}
	return nil
}

// UpsertProduct registers a product with an absolute stock level.
func (i *Inventory) UpsertProduct(ctx context.Context, productID, name string, stock int) error {
	if i == nil || i.db == nil {
		return errors.New("postgres inventory not configured")
	}
	record := productRecord{ID: productID, Name: name, Stock: stock}
	return i.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "stock", "updated_at"}),
		}).Create(&record).Error
}

// Stock returns the current stock level of a product.
func (i *Inventory) Stock(ctx context.Context, productID string) (int, error) {
	if i == nil || i.db == nil {
		return 0, errors.New("postgres inventory not configured")
	}
	var record productRecord
	if err := i.db.WithContext(ctx).First(&record, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", ports.ErrProductNotFound, productID)
		}
		return 0, err
	}
	return record.Stock, nil
}
