package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

const (
	// DefaultStatsPeriod is the reporting window used when the caller gives none.
	DefaultStatsPeriod = 30
	recentOrdersLimit  = 5
)

// Reporting computes dashboard statistics from aggregate pipelines.
type Reporting struct {
	store    ports.Store
	location *time.Location
	now      func() time.Time
}

// NewReporting returns an aggregator bucketing days in loc (UTC when nil).
func NewReporting(store ports.Store, loc *time.Location) *Reporting {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporting{store: store, location: loc, now: time.Now}
}

// Summarize computes the statistics for the last periodDays days.
// Counts by status and total revenue are unwindowed; the rest covers [now-period, now].
func (r *Reporting) Summarize(ctx context.Context, periodDays int) (*domain.Stats, error) {
	if periodDays < 1 {
		return nil, fmt.Errorf("%w: period must be at least one day, got %d", ErrInvalidInput, periodDays)
	}
	now := r.now()
	cutoff := now.AddDate(0, 0, -periodDays)
	completed := domain.PaymentCompleted

	stats := &domain.Stats{
		PeriodDays:      periodDays,
		GeneratedAt:     now,
		TotalRevenue:    decimal.Zero,
		PeriodRevenue:   decimal.Zero,
		StatusBreakdown: make(map[domain.Status]int64, len(domain.Statuses())),
		RecentOrders:    []domain.RecentOrder{},
		DailySales:      []domain.DailySales{},
	}
	for _, status := range domain.Statuses() {
		stats.StatusBreakdown[status] = 0
	}

	var (
		byStatus []ports.AggregateRow
		byDay    []ports.AggregateRow
		recent   []*domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := r.store.ExecuteCount(gctx, pipeline.Pipeline{pipeline.Count{}})
		stats.TotalOrders = total
		return err
	})
	g.Go(func() error {
		rows, err := r.store.ExecuteAggregate(gctx, pipeline.Aggregate(
			pipeline.FilterByFields{PaymentStatus: &completed},
			pipeline.Group{By: pipeline.GroupNone},
		))
		stats.TotalRevenue = sumTotals(rows)
		return err
	})
	g.Go(func() error {
		rows, err := r.store.ExecuteAggregate(gctx, pipeline.Aggregate(
			pipeline.Window(cutoff, now, &completed),
			pipeline.Group{By: pipeline.GroupNone},
		))
		stats.PeriodRevenue = sumTotals(rows)
		return err
	})
	g.Go(func() error {
		var err error
		byStatus, err = r.store.ExecuteAggregate(gctx, pipeline.Aggregate(
			pipeline.FilterByFields{},
			pipeline.Group{By: pipeline.GroupStatus},
		))
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = r.store.ExecuteQuery(gctx, pipeline.Recent(cutoff, now, recentOrdersLimit))
		return err
	})
	g.Go(func() error {
		var err error
		byDay, err = r.store.ExecuteAggregate(gctx, pipeline.Aggregate(
			pipeline.Window(cutoff, now, &completed),
			pipeline.Group{By: pipeline.GroupDay, Location: r.location},
		))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, mapError(err)
	}

	for _, row := range byStatus {
		stats.StatusBreakdown[row.Status] += row.Count
	}
	for _, o := range recent {
		stats.RecentOrders = append(stats.RecentOrders, domain.RecentOrder{
			ID:         o.ID,
			Buyer:      o.Buyer,
			TotalPrice: o.TotalPrice,
			Status:     o.Status,
			CreatedAt:  o.CreatedAt,
		})
	}
	sort.SliceStable(byDay, func(i, j int) bool { return byDay[i].Day.Before(byDay[j].Day) })
	for _, row := range byDay {
		stats.DailySales = append(stats.DailySales, domain.DailySales{
			Day:        row.Day,
			TotalSales: row.Total,
			OrderCount: row.Count,
		})
	}
	return stats, nil
}

func sumTotals(rows []ports.AggregateRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Total)
	}
	return total
}
