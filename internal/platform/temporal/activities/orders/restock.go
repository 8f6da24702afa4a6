package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

const (
	// RestockItemActivityName returns one line item to inventory.
	RestockItemActivityName = "orders.activities.RestockItem"

	productNotFoundErrorType = "ProductNotFound"
)

// RestockItemInput identifies the stock released for one line item of an order.
type RestockItemInput struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// Activities groups activities that act on inventory on behalf of orders.
type Activities struct {
	inventory ports.Inventory
}

// NewActivities wires the inventory adapter into the Temporal activities bundle.
func NewActivities(inventory ports.Inventory) *Activities {
	return &Activities{inventory: inventory}
}

// RestockItem increments stock for a single product. An unknown product is not retried.
func (a *Activities) RestockItem(ctx context.Context, input RestockItemInput) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.inventory == nil {
		logger.Error("restock activity not initialized", "orderId", input.OrderID)
		return errors.New("restock activity not initialized")
	}

	// A prior attempt may have applied the increment and then lost its completion.
	var hb restockHeartbeat
	if activity.HasHeartbeatDetails(ctx) {
		_ = activity.GetHeartbeatDetails(ctx, &hb)
	}
	if hb.Applied {
		logger.Info("RestockItem already applied in prior attempt; skipping", "orderId", input.OrderID, "productId", input.ProductID)
		return nil
	}

	logger.Info("RestockItem activity started", "orderId", input.OrderID, "productId", input.ProductID, "quantity", input.Quantity)
	if err := a.inventory.IncrementStock(ctx, input.ProductID, input.Quantity); err != nil {
		logger.Error("RestockItem activity failed", "orderId", input.OrderID, "productId", input.ProductID, "error", err)
		if errors.Is(err, ports.ErrProductNotFound) {
			return temporal.NewNonRetryableApplicationError(err.Error(), productNotFoundErrorType, err)
		}
		return err
	}
	activity.RecordHeartbeat(ctx, restockHeartbeat{Applied: true})
	logger.Info("RestockItem activity completed", "orderId", input.OrderID, "productId", input.ProductID)
	return nil
}

type restockHeartbeat struct {
	Applied bool
}
