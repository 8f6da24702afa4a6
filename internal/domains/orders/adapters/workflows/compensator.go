package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/go-order-admin/internal/platform/temporal/workflows/orders"
)

var (
	_ ports.Compensator = (*TemporalCompensator)(nil)
	_ ports.Compensator = (*InlineCompensator)(nil)
)

// ErrRestockPending marks items whose restock workflow had not finished when the caller stopped waiting.
var ErrRestockPending = errors.New("restock still in progress")

const (
	// DefaultConcurrency bounds the restocks an InlineCompensator runs at once.
	DefaultConcurrency = 4
	// DefaultWaitTimeout bounds how long a request waits on the restock workflow.
	// It stays below the API server's write timeout.
	DefaultWaitTimeout = 20 * time.Second
)

// TemporalCompensator releases stock through the restock workflow on a Temporal cluster.
type TemporalCompensator struct {
	client    client.Client
	taskQueue string
	wait      time.Duration
}

// TemporalOption customises a TemporalCompensator.
type TemporalOption func(*TemporalCompensator)

// WithWaitTimeout sets how long Restock waits for the workflow result.
func WithWaitTimeout(d time.Duration) TemporalOption {
	return func(c *TemporalCompensator) {
		if d > 0 {
			c.wait = d
		}
	}
}

// NewTemporalCompensator wires a Temporal client into the compensator.
func NewTemporalCompensator(c client.Client, opts ...TemporalOption) *TemporalCompensator {
	tc := &TemporalCompensator{client: c, taskQueue: orderworkflows.RestockTaskQueue, wait: DefaultWaitTimeout}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Restock starts (or joins) the restock workflow for the items and waits for its outcome.
// When the workflow cannot be run at all every item is reported as failed. When it is
// still running after the wait timeout every item is reported as failed and stays
// pending, while the workflow carries on in the background.
func (c *TemporalCompensator) Restock(ctx context.Context, orderID string, items []domain.LineItem) domain.CompensationReport {
	if len(items) == 0 {
		return domain.CompensationReport{}
	}
	if c == nil || c.client == nil {
		return failAll(items, errors.New("temporal compensator not configured"))
	}
	input := orderworkflows.RestockWorkflowInput{
		OrderID: orderID,
		Items:   make([]orderworkflows.RestockLine, 0, len(items)),
		TraceID: workflowTraceID(ctx),
	}
	for _, item := range items {
		input.Items = append(input.Items, orderworkflows.RestockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	workflowID := buildRestockWorkflowID(orderID, items)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}

	ctx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()

	var result orderworkflows.RestockWorkflowResult
	run, err := c.client.ExecuteWorkflow(ctx, options, orderworkflows.RestockWorkflowName, input)
	if err != nil {
		// The same restock is already running: wait for that run instead of releasing twice.
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) {
			return failAll(items, fmt.Errorf("start restock workflow: %w", err))
		}
		run = c.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
	}
	if err := run.Get(ctx, &result); err != nil {
		if ctx.Err() != nil {
			return failAll(items, fmt.Errorf("%w: workflow %s still running after %s", ErrRestockPending, workflowID, c.wait))
		}
		return failAll(items, fmt.Errorf("restock workflow %s: %w", workflowID, err))
	}
	return reportFromOutcomes(items, result)
}

func reportFromOutcomes(items []domain.LineItem, result orderworkflows.RestockWorkflowResult) domain.CompensationReport {
	if len(result.Outcomes) != len(items) {
		return failAll(items, fmt.Errorf("restock workflow returned %d outcomes for %d items", len(result.Outcomes), len(items)))
	}
	report := domain.CompensationReport{Results: make([]domain.RestockResult, len(items))}
	for i, outcome := range result.Outcomes {
		res := domain.RestockResult{ProductID: items[i].ProductID, Quantity: items[i].Quantity}
		if outcome.Error != "" {
			res.Err = errors.New(outcome.Error)
		}
		report.Results[i] = res
	}
	return report
}

// InlineCompensator increments stock directly, without durable orchestration.
// It backs local development and deployments without Temporal.
type InlineCompensator struct {
	inventory   ports.Inventory
	concurrency int
}

// NewInlineCompensator returns a compensator running at most concurrency restocks at once.
func NewInlineCompensator(inventory ports.Inventory, concurrency int) *InlineCompensator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &InlineCompensator{inventory: inventory, concurrency: concurrency}
}

// Restock dispatches every item and waits for all of them; one failure does not stop the rest.
func (c *InlineCompensator) Restock(ctx context.Context, _ string, items []domain.LineItem) domain.CompensationReport {
	if len(items) == 0 {
		return domain.CompensationReport{}
	}
	if c == nil || c.inventory == nil {
		return failAll(items, errors.New("inline compensator not configured"))
	}
	results := make([]domain.RestockResult, len(items))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, item := range items {
		g.Go(func() error {
			res := domain.RestockResult{ProductID: item.ProductID, Quantity: item.Quantity}
			if err := c.inventory.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				res.Err = fmt.Errorf("restock %s: %w", item.ProductID, err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return domain.CompensationReport{Results: results}
}

func failAll(items []domain.LineItem, err error) domain.CompensationReport {
	report := domain.CompensationReport{Results: make([]domain.RestockResult, 0, len(items))}
	for _, item := range items {
		report.Results = append(report.Results, domain.RestockResult{ProductID: item.ProductID, Quantity: item.Quantity, Err: err})
	}
	return report
}

// buildRestockWorkflowID is stable for the same order and item set, so a retried
// request joins a running restock rather than starting a second one.
func buildRestockWorkflowID(orderID string, items []domain.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s:%d", item.ProductID, item.Quantity))
	}
	sort.Strings(parts)
	return fmt.Sprintf("order-restock-%s-%s", orderID, hashKey(strings.Join(parts, ",")))
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return spanCtx.TraceID().String()
}
