package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

type stubService struct {
	summary *ports.Summary
	err     error
}

func (s stubService) ListOrders(context.Context, pipeline.QuerySpec) (*ports.Page, error) {
	return &ports.Page{}, s.err
}
func (s stubService) GetOrder(context.Context, string) (*domain.Order, error) { return nil, s.err }
func (s stubService) TransitionStatus(context.Context, string, domain.Status, string) (*ports.Summary, error) {
	return s.summary, s.err
}
func (s stubService) UpdatePayment(context.Context, string, domain.PaymentStatus, string, string) (*ports.Summary, error) {
	return s.summary, s.err
}
func (s stubService) DeleteOrder(context.Context, string) error { return s.err }
func (s stubService) RetryCompensation(context.Context, string) (*ports.Summary, error) {
	return s.summary, s.err
}
func (s stubService) GetStats(context.Context, int) (*domain.Stats, error) { return &domain.Stats{}, s.err }

func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestService_RecordsTransitionAndCompensationFailures(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	var logs bytes.Buffer

	summary := &ports.Summary{
		ID:     "ord-1",
		Status: domain.StatusCancelled,
		Compensation: &domain.CompensationReport{Results: []domain.RestockResult{
			{ProductID: "p-1", Quantity: 1},
			{ProductID: "p-2", Quantity: 2, Err: errors.New("offline")},
		}},
	}
	svc := New(stubService{summary: summary},
		WithMeter(meter),
		WithTracer(tracer),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	_, err := svc.TransitionStatus(context.Background(), "ord-1", domain.StatusCancelled, "")
	require.NoError(t, err)

	totals := counterTotals(t, reader)
	assert.Equal(t, int64(1), totals["orders.service.status_transitions"])
	assert.Equal(t, int64(1), totals["orders.service.restock_failures"])
	assert.Contains(t, logs.String(), "compensation incomplete")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "OrderService.TransitionStatus", spans[0].Name())
}

func TestService_MarksSpanOnError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	boom := errors.New("boom")
	svc := New(stubService{err: boom}, WithTracer(tracer))

	err := svc.DeleteOrder(context.Background(), "ord-1")
	require.ErrorIs(t, err, boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
