package workflows

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/platform/temporal/sequences"
	orderworkflows "github.com/Apurer/go-order-admin/internal/platform/temporal/workflows/orders"
)

var items = []domain.LineItem{
	{ProductID: "p-1", Quantity: 2},
	{ProductID: "p-2", Quantity: 3},
	{ProductID: "p-3", Quantity: 1},
}

func TestInlineCompensator_RestocksEveryItem(t *testing.T) {
	inventory := memory.NewInventory()
	for _, id := range []string{"p-1", "p-2", "p-3"} {
		inventory.SetStock(id, 10)
	}
	inventory.FailOn("p-2", errors.New("warehouse offline"))

	report := NewInlineCompensator(inventory, 2).Restock(context.Background(), "ord-1", items)

	require.Len(t, report.Results, 3)
	assert.False(t, report.Complete())
	assert.Equal(t, []string{"p-1", "p-3"}, report.Restocked())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "p-2", failed[0].ProductID)
	assert.Equal(t, 12, inventory.Stock("p-1"))
	assert.Equal(t, 10, inventory.Stock("p-2"))
	assert.Equal(t, 11, inventory.Stock("p-3"))
	assert.Equal(t, 3, inventory.Calls())
}

type countingInventory struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (c *countingInventory) IncrementStock(_ context.Context, _ string, _ int) error {
	n := c.inFlight.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-c.release
	c.inFlight.Add(-1)
	return nil
}

func TestInlineCompensator_BoundsConcurrency(t *testing.T) {
	inventory := &countingInventory{release: make(chan struct{})}
	close(inventory.release)

	report := NewInlineCompensator(inventory, 1).Restock(context.Background(), "ord-1", items)

	assert.True(t, report.Complete())
	assert.Equal(t, int32(1), inventory.peak.Load())
}

func TestInlineCompensator_EmptyAndUnconfigured(t *testing.T) {
	assert.Empty(t, NewInlineCompensator(memory.NewInventory(), 0).Restock(context.Background(), "ord-1", nil).Results)

	report := (&InlineCompensator{}).Restock(context.Background(), "ord-1", items)
	assert.Len(t, report.Failed(), 3)
}

func TestTemporalCompensator_MapsOutcomes(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	wantID := buildRestockWorkflowID("ord-1", items)

	c.On("ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == wantID && o.TaskQueue == orderworkflows.RestockTaskQueue
		}),
		orderworkflows.RestockWorkflowName,
		mock.MatchedBy(func(in orderworkflows.RestockWorkflowInput) bool {
			return in.OrderID == "ord-1" && len(in.Items) == 3
		}),
	).Return(run, nil).Once()
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		result := args.Get(1).(*orderworkflows.RestockWorkflowResult)
		result.Outcomes = []sequences.RestockOutcome{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 3, Error: "product not found"},
			{ProductID: "p-3", Quantity: 1},
		}
	}).Return(nil).Once()

	report := NewTemporalCompensator(c).Restock(context.Background(), "ord-1", items)

	assert.Equal(t, []string{"p-1", "p-3"}, report.Restocked())
	require.Len(t, report.Failed(), 1)
	assert.EqualError(t, report.Failed()[0].Err, "product not found")
	c.AssertExpectations(t)
	run.AssertExpectations(t)
}

func TestTemporalCompensator_JoinsRunningWorkflow(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	wantID := buildRestockWorkflowID("ord-1", items)

	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &serviceerror.WorkflowExecutionAlreadyStarted{Message: "already started", RunId: "run-1"}).Once()
	c.On("GetWorkflow", mock.Anything, wantID, "run-1").Return(run).Once()
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		result := args.Get(1).(*orderworkflows.RestockWorkflowResult)
		for _, item := range items {
			result.Outcomes = append(result.Outcomes, sequences.RestockOutcome{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}).Return(nil).Once()

	report := NewTemporalCompensator(c).Restock(context.Background(), "ord-1", items)

	assert.True(t, report.Complete())
	c.AssertExpectations(t)
}

func TestTemporalCompensator_StartFailureFailsEveryItem(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	report := NewTemporalCompensator(c).Restock(context.Background(), "ord-1", items)

	assert.Len(t, report.Failed(), 3)
	assert.Empty(t, report.Restocked())
}

func TestTemporalCompensator_StopsWaitingOnSlowWorkflow(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil).Once()
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(errors.New("context deadline exceeded")).Once()

	started := time.Now()
	report := NewTemporalCompensator(c, WithWaitTimeout(50*time.Millisecond)).
		Restock(context.WithoutCancel(context.Background()), "ord-1", items)

	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Empty(t, report.Restocked())
	failed := report.Failed()
	require.Len(t, failed, 3)
	for _, f := range failed {
		assert.ErrorIs(t, f.Err, ErrRestockPending)
	}
	run.AssertExpectations(t)
}

func TestBuildRestockWorkflowID_IsOrderIndependent(t *testing.T) {
	reversed := []domain.LineItem{items[2], items[1], items[0]}
	assert.Equal(t, buildRestockWorkflowID("ord-1", items), buildRestockWorkflowID("ord-1", reversed))
	assert.NotEqual(t, buildRestockWorkflowID("ord-1", items), buildRestockWorkflowID("ord-1", items[:1]))
	assert.NotEqual(t, buildRestockWorkflowID("ord-1", items), buildRestockWorkflowID("ord-2", items))
}
