package ports

import (
	"context"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

// Compensator returns line items to inventory and reports the outcome per item.
type Compensator interface {
	Restock(ctx context.Context, orderID string, items []domain.LineItem) domain.CompensationReport
}
