package orders

import (
	"go.temporal.io/sdk/workflow"

	orderactivities "github.com/Apurer/go-order-admin/internal/platform/temporal/activities/orders"
	"github.com/Apurer/go-order-admin/internal/platform/temporal/sequences"
)

const (
	// RestockWorkflowName is the public identifier for registering the workflow.
	RestockWorkflowName = "orders.workflows.Restock"
	// RestockTaskQueue is the queue consumed by the worker releasing stock for orders.
	RestockTaskQueue = "ORDER_COMPENSATION"
)

// RestockLine is one line item to return to inventory.
type RestockLine struct {
	ProductID string
	Quantity  int
}

// RestockWorkflowInput captures the stock owed back to inventory by an order.
type RestockWorkflowInput struct {
	OrderID string
	Items   []RestockLine
	TraceID string
}

// RestockWorkflowResult lists the outcome of every requested line in input order.
type RestockWorkflowResult struct {
	Outcomes []sequences.RestockOutcome
}

// RestockWorkflow returns an order's line items to inventory with per-item retries.
// The workflow itself succeeds even when items fail; failures are reported per item.
func RestockWorkflow(ctx workflow.Context, input RestockWorkflowInput) (*RestockWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RestockWorkflow started", withTraceID(input.TraceID, "orderId", input.OrderID, "items", len(input.Items))...)

	items := make([]orderactivities.RestockItemInput, 0, len(input.Items))
	for _, line := range input.Items {
		items = append(items, orderactivities.RestockItemInput{
			OrderID:   input.OrderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	outcomes := sequences.RunRestockSequence(ctx, items)

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("RestockWorkflow completed with failures", withTraceID(input.TraceID, "orderId", input.OrderID, "failed", failed)...)
	} else {
		logger.Info("RestockWorkflow completed", withTraceID(input.TraceID, "orderId", input.OrderID)...)
	}
	return &RestockWorkflowResult{Outcomes: outcomes}, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
