package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	orderactivities "github.com/Apurer/go-order-admin/internal/platform/temporal/activities/orders"
)

// RestockOutcome is the result of releasing one line item. Error is empty on success.
type RestockOutcome struct {
	ProductID string
	Quantity  int
	Error     string
}

// RunRestockSequence releases every item concurrently and waits for all of them.
// A failed item does not stop the others; its last error is carried in the outcome.
func RunRestockSequence(ctx workflow.Context, items []orderactivities.RestockItemInput) []RestockOutcome {
	logger := workflow.GetLogger(ctx)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	}
	actx := workflow.WithActivityOptions(ctx, options)

	futures := make([]workflow.Future, len(items))
	for i, item := range items {
		futures[i] = workflow.ExecuteActivity(actx, orderactivities.RestockItemActivityName, item)
	}
	outcomes := make([]RestockOutcome, len(items))
	for i, future := range futures {
		outcomes[i] = RestockOutcome{ProductID: items[i].ProductID, Quantity: items[i].Quantity}
		if err := future.Get(ctx, nil); err != nil {
			logger.Error("restock sequence item failed", "orderId", items[i].OrderID, "productId", items[i].ProductID, "error", err)
			outcomes[i].Error = err.Error()
		}
	}
	return outcomes
}
