package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

// settleAttempts bounds how often a compensation settlement is retried after a version conflict.
const settleAttempts = 3

// Lifecycle applies order and payment status transitions and their inventory side effects.
//
// A cancellation is run as a small saga: the status write also records the line items
// owed to inventory (PendingCompensation), restocks run afterwards, and each successful
// restock is cleared from the marker. Items whose restock failed stay pending and are
// reported to the caller rather than rolled back.
type Lifecycle struct {
	store       ports.Store
	compensator ports.Compensator
	events      ports.EventSink
	logger      *slog.Logger
	now         func() time.Time
}

// NewLifecycle wires the lifecycle manager. events and logger may be nil.
func NewLifecycle(store ports.Store, compensator ports.Compensator, events ports.EventSink, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:       store,
		compensator: compensator,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// TransitionStatus moves an order to status and restocks its items when it is newly cancelled.
func (l *Lifecycle) TransitionStatus(ctx context.Context, id string, status domain.Status, notes string) (*ports.Summary, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, mapError(fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status))
	}
	order, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	transition, err := order.TransitionTo(status, notes, l.now())
	if err != nil {
		return nil, mapError(err)
	}
	saved, err := l.store.Save(ctx, order)
	if err != nil {
		return nil, mapError(err)
	}

	var report *domain.CompensationReport
	if len(transition.Restock) > 0 {
		saved, report = l.compensate(ctx, saved, transition.Restock)
	}
	l.emit(ctx, domain.OrderStatusChanged{
		BaseEvent:  domain.BaseEvent{OrderID: saved.ID, Timestamp: l.now()},
		FromStatus: transition.From,
		ToStatus:   transition.To,
		Notes:      notes,
	})
	return summarize(saved, report), nil
}

// UpdatePayment moves an order to a new payment status.
func (l *Lifecycle) UpdatePayment(ctx context.Context, id string, status domain.PaymentStatus, transactionID, notes string) (*ports.Summary, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, mapError(fmt.Errorf("%w: %q", domain.ErrInvalidPaymentStatus, status))
	}
	order, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	from := order.PaymentStatus
	if err := order.UpdatePayment(status, transactionID, notes, l.now()); err != nil {
		return nil, mapError(err)
	}
	saved, err := l.store.Save(ctx, order)
	if err != nil {
		return nil, mapError(err)
	}
	l.emit(ctx, domain.PaymentStatusChanged{
		BaseEvent:     domain.BaseEvent{OrderID: saved.ID, Timestamp: l.now()},
		FromStatus:    from,
		ToStatus:      status,
		TransactionID: saved.TransactionID,
		Notes:         notes,
	})
	return summarize(saved, nil), nil
}

// Delete removes a pending or cancelled order, releasing any stock it still holds first.
// When some stock cannot be released the order is kept as cancelled and the call fails.
func (l *Lifecycle) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	order, err := l.store.FindByID(ctx, id)
	if err != nil {
		return mapError(err)
	}
	previous := order.Status
	owed, err := order.PrepareDeletion(l.now())
	if err != nil {
		return mapError(err)
	}
	if order.Status != previous {
		if order, err = l.store.Save(ctx, order); err != nil {
			return mapError(err)
		}
	}
	if len(owed) > 0 {
		order, _ = l.compensate(ctx, order, owed)
		if order.HasPendingCompensation() {
			return fmt.Errorf("%w: %d line items of order %s could not be restocked, order kept as cancelled",
				ErrDependencyFailure, len(order.PendingCompensation), order.ID)
		}
	}
	if err := l.store.DeleteByID(ctx, id); err != nil {
		return mapError(err)
	}
	l.emit(ctx, domain.OrderDeleted{
		BaseEvent:      domain.BaseEvent{OrderID: id, Timestamp: l.now()},
		PreviousStatus: previous,
	})
	return nil
}

// RetryCompensation re-runs the restocks still pending on an order.
func (l *Lifecycle) RetryCompensation(ctx context.Context, id string) (*ports.Summary, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	order, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if !order.HasPendingCompensation() {
		return summarize(order, nil), nil
	}
	order, report := l.compensate(ctx, order, append([]domain.LineItem(nil), order.PendingCompensation...))
	return summarize(order, report), nil
}

// compensate restocks items and clears the successful ones from the pending marker.
// It runs detached from caller cancellation so an abandoned request cannot cut it short.
func (l *Lifecycle) compensate(ctx context.Context, order *domain.Order, items []domain.LineItem) (*domain.Order, *domain.CompensationReport) {
	ctx = context.WithoutCancel(ctx)
	report := l.compensator.Restock(ctx, order.ID, items)

	if restocked := report.Restocked(); len(restocked) > 0 {
		settled, err := l.settle(ctx, order, restocked)
		if err != nil {
			report.SettleErr = mapError(err)
			l.logError(ctx, "failed to record restocked items", err, slog.String("order.id", order.ID))
		} else {
			order = settled
		}
	}
	if failed := report.Failed(); len(failed) > 0 {
		ids := make([]string, 0, len(failed))
		for _, f := range failed {
			ids = append(ids, f.ProductID)
			l.logError(ctx, "restock failed", f.Err, slog.String("order.id", order.ID), slog.String("product.id", f.ProductID))
		}
		l.emit(ctx, domain.CompensationFailed{
			BaseEvent:        domain.BaseEvent{OrderID: order.ID, Timestamp: l.now()},
			FailedProductIDs: ids,
		})
	}
	return order, &report
}

// settle clears restocked items from the pending marker on a copy, so a failed
// save leaves order describing what is actually stored.
func (l *Lifecycle) settle(ctx context.Context, order *domain.Order, restocked []string) (*domain.Order, error) {
	current := order.Clone()
	var err error
	for attempt := 0; attempt < settleAttempts; attempt++ {
		current.SettleCompensation(restocked)
		var saved *domain.Order
		saved, err = l.store.Save(ctx, current)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ports.ErrConflict) {
			return nil, err
		}
		if current, err = l.store.FindByID(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	return nil, err
}

func (l *Lifecycle) emit(ctx context.Context, event domain.Event) {
	if l.events == nil {
		return
	}
	l.events.Emit(ctx, event)
}

func (l *Lifecycle) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if l.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return mapError(domain.ErrInvalidID)
	}
	return nil
}

func summarize(order *domain.Order, report *domain.CompensationReport) *ports.Summary {
	return &ports.Summary{
		ID:                  order.ID,
		Status:              order.Status,
		PaymentStatus:       order.PaymentStatus,
		IsPaid:              order.IsPaid,
		PaidAt:              order.PaidAt,
		IsDelivered:         order.IsDelivered,
		DeliveredAt:         order.DeliveredAt,
		TransactionID:       order.TransactionID,
		Compensation:        report,
		PendingCompensation: append([]domain.LineItem(nil), order.PendingCompensation...),
	}
}
