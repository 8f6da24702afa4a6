package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrConflict        = errors.New("order was modified concurrently")
	ErrProductNotFound = errors.New("product not found")
)

// AggregateRow is one group produced by a pipeline ending in a Group stage.
// Status is set for status groups and Day for day groups.
type AggregateRow struct {
	Status domain.Status
	Day    domain.Day
	Count  int64
	Total  decimal.Decimal
}

// Store executes retrieval pipelines and persists order aggregates.
type Store interface {
	// ExecuteQuery runs a pipeline that does not end in a terminal stage.
	ExecuteQuery(ctx context.Context, p pipeline.Pipeline) ([]*domain.Order, error)
	// ExecuteCount runs a pipeline ending in pipeline.Count.
	ExecuteCount(ctx context.Context, p pipeline.Pipeline) (int64, error)
	// ExecuteAggregate runs a pipeline ending in pipeline.Group.
	ExecuteAggregate(ctx context.Context, p pipeline.Pipeline) ([]AggregateRow, error)
	// FindByID loads one order with its buyer summary, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// Save writes the order when its Version matches the stored one and returns
	// the stored copy with the bumped version. A stale version yields ErrConflict.
	// Version zero inserts a new order.
	Save(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// DeleteByID removes an order, or returns ErrNotFound.
	DeleteByID(ctx context.Context, id string) error
}

// Inventory adjusts product stock levels.
type Inventory interface {
	IncrementStock(ctx context.Context, productID string, amount int) error
}
