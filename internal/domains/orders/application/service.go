package application

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

// Service is the admin facade over listing, lifecycle and reporting use cases.
type Service struct {
	store     ports.Store
	lifecycle *Lifecycle
	reporting *Reporting
}

// Option customises Service construction.
type Option func(*options)

type options struct {
	events   ports.EventSink
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// WithEventSink sets the sink receiving lifecycle events.
func WithEventSink(sink ports.EventSink) Option {
	return func(o *options) { o.events = sink }
}

// WithLogger sets the logger used for compensation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLocation sets the time zone daily sales are bucketed in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewService wires the facade from its ports.
func NewService(store ports.Store, compensator ports.Compensator, opts ...Option) *Service {
	cfg := options{location: time.UTC, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	lifecycle := NewLifecycle(store, compensator, cfg.events, cfg.logger)
	lifecycle.now = cfg.now
	reporting := NewReporting(store, cfg.location)
	reporting.now = cfg.now
	return &Service{store: store, lifecycle: lifecycle, reporting: reporting}
}

// ListOrders returns one page of orders and the envelope computed from the same filters.
func (s *Service) ListOrders(ctx context.Context, query pipeline.QuerySpec) (*ports.Page, error) {
	if err := query.Validate(); err != nil {
		return nil, mapError(err)
	}
	plan := pipeline.Build(query)

	var (
		items []*domain.Order
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ExecuteQuery(gctx, plan.Page())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.ExecuteCount(gctx, plan.Count())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, mapError(err)
	}
	if len(items) > query.Limit {
		items = items[:query.Limit]
	}
	if items == nil {
		items = []*domain.Order{}
	}
	return &ports.Page{
		Items:      items,
		Pagination: pipeline.Paginate(query.Page, query.Limit, total),
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return order, nil
}

func (s *Service) TransitionStatus(ctx context.Context, id string, status domain.Status, notes string) (*ports.Summary, error) {
	return s.lifecycle.TransitionStatus(ctx, id, status, notes)
}

func (s *Service) UpdatePayment(ctx context.Context, id string, status domain.PaymentStatus, transactionID, notes string) (*ports.Summary, error) {
	return s.lifecycle.UpdatePayment(ctx, id, status, transactionID, notes)
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.lifecycle.Delete(ctx, id)
}

func (s *Service) RetryCompensation(ctx context.Context, id string) (*ports.Summary, error) {
	return s.lifecycle.RetryCompensation(ctx, id)
}

func (s *Service) GetStats(ctx context.Context, periodDays int) (*domain.Stats, error) {
	return s.reporting.Summarize(ctx, periodDays)
}

var _ ports.Service = (*Service)(nil)
