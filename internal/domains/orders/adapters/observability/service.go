package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/observability/service"

// Service decorates the orders service with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core orders service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) ListOrders(ctx context.Context, query pipeline.QuerySpec) (*ports.Page, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders", trace.WithAttributes(
		attribute.Int("query.page", query.Page),
		attribute.Int("query.limit", query.Limit),
		attribute.Bool("query.search", query.Search != ""),
	))
	defer span.End()

	result, err := s.inner.ListOrders(ctx, query)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders", slog.Int("query.page", query.Page))
	}
	span.SetAttributes(
		attribute.Int("orders.returned", len(result.Items)),
		attribute.Int64("orders.total", result.Pagination.TotalOrders),
	)
	s.logInfo(ctx, "orders listed",
		slog.Int("query.page", query.Page),
		slog.Int("orders.returned", len(result.Items)),
		slog.Int64("orders.total", result.Pagination.TotalOrders),
	)
	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", id))
	}
	return result, nil
}

func (s *Service) TransitionStatus(ctx context.Context, id string, status domain.Status, notes string) (*ports.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.TransitionStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	s.logInfo(ctx, "transitioning order", slog.String("order.id", id), slog.String("order.status", string(status)))
	result, err := s.inner.TransitionStatus(ctx, id, status, notes)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to transition order", slog.String("order.id", id))
	}
	s.metrics.recordTransition(ctx, result.Status)
	s.recordCompensation(ctx, span, result)
	s.logInfo(ctx, "order transitioned", slog.String("order.id", result.ID), slog.String("order.status", string(result.Status)))
	return result, nil
}

func (s *Service) UpdatePayment(ctx context.Context, id string, status domain.PaymentStatus, transactionID, notes string) (*ports.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdatePayment", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.payment_status", string(status)),
	))
	defer span.End()

	s.logInfo(ctx, "updating payment", slog.String("order.id", id), slog.String("order.payment_status", string(status)))
	result, err := s.inner.UpdatePayment(ctx, id, status, transactionID, notes)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to update payment", slog.String("order.id", id))
	}
	s.metrics.recordPayment(ctx, result.PaymentStatus)
	s.logInfo(ctx, "payment updated", slog.String("order.id", result.ID), slog.Bool("order.is_paid", result.IsPaid))
	return result, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	s.logInfo(ctx, "deleting order", slog.String("order.id", id))
	if err := s.inner.DeleteOrder(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to delete order", slog.String("order.id", id))
	}
	s.metrics.recordDeleted(ctx)
	s.logInfo(ctx, "order deleted", slog.String("order.id", id))
	return nil
}

func (s *Service) RetryCompensation(ctx context.Context, id string) (*ports.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.RetryCompensation", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	result, err := s.inner.RetryCompensation(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to retry compensation", slog.String("order.id", id))
	}
	s.recordCompensation(ctx, span, result)
	s.logInfo(ctx, "compensation retried",
		slog.String("order.id", result.ID),
		slog.Int("compensation.pending", len(result.PendingCompensation)),
	)
	return result, nil
}

func (s *Service) GetStats(ctx context.Context, periodDays int) (*domain.Stats, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetStats", trace.WithAttributes(attribute.Int("stats.period_days", periodDays)))
	defer span.End()

	result, err := s.inner.GetStats(ctx, periodDays)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to compute order stats", slog.Int("stats.period_days", periodDays))
	}
	span.SetAttributes(attribute.Int64("orders.total", result.TotalOrders))
	return result, nil
}

func (s *Service) recordCompensation(ctx context.Context, span trace.Span, summary *ports.Summary) {
	if summary == nil || summary.Compensation == nil {
		return
	}
	failed := len(summary.Compensation.Failed())
	span.SetAttributes(
		attribute.Int("compensation.items", len(summary.Compensation.Results)),
		attribute.Int("compensation.failed", failed),
		attribute.Bool("compensation.settled", summary.Compensation.SettleErr == nil),
	)
	if err := summary.Compensation.SettleErr; err != nil {
		span.RecordError(err)
		s.logError(ctx, "restocked items not recorded on order", err, slog.String("order.id", summary.ID))
	}
	if failed > 0 {
		s.metrics.recordCompensationFailures(ctx, failed)
		s.logger.LogAttrs(ctx, slog.LevelWarn, "compensation incomplete",
			slog.String("order.id", summary.ID),
			slog.Int("compensation.failed", failed),
		)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

type serviceMetrics struct {
	transitions          metric.Int64Counter
	payments             metric.Int64Counter
	deletions            metric.Int64Counter
	compensationFailures metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	transitions, _ := m.Int64Counter("orders.service.status_transitions", metric.WithDescription("Number of order status transitions"))
	payments, _ := m.Int64Counter("orders.service.payment_updates", metric.WithDescription("Number of payment status updates"))
	deletions, _ := m.Int64Counter("orders.service.orders_deleted", metric.WithDescription("Number of orders deleted"))
	compensationFailures, _ := m.Int64Counter("orders.service.restock_failures", metric.WithDescription("Number of line items that could not be restocked"))
	return serviceMetrics{
		transitions:          transitions,
		payments:             payments,
		deletions:            deletions,
		compensationFailures: compensationFailures,
	}
}

func (m serviceMetrics) recordTransition(ctx context.Context, status domain.Status) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(status))))
	}
}

func (m serviceMetrics) recordPayment(ctx context.Context, status domain.PaymentStatus) {
	if m.payments != nil {
		m.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("order.payment_status", string(status))))
	}
}

func (m serviceMetrics) recordDeleted(ctx context.Context) {
	if m.deletions != nil {
		m.deletions.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordCompensationFailures(ctx context.Context, n int) {
	if m.compensationFailures != nil {
		m.compensationFailures.Add(ctx, int64(n))
	}
}

var _ ports.Service = (*Service)(nil)
