package ports

import (
	"context"
	"time"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
)

// Summary is the state of an order after a lifecycle operation.
type Summary struct {
	ID            string
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
	IsPaid        bool
	PaidAt        *time.Time
	IsDelivered   bool
	DeliveredAt   *time.Time
	TransactionID string
	// Compensation is set when the operation released stock.
	Compensation *domain.CompensationReport
	// PendingCompensation lists items still owed to inventory after the operation.
	PendingCompensation []domain.LineItem
}

// Page is one page of orders plus its envelope.
type Page struct {
	Items      []*domain.Order
	Pagination pipeline.Pagination
}

// Service exposes the order administration use cases to adapters.
type Service interface {
	ListOrders(ctx context.Context, query pipeline.QuerySpec) (*Page, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	TransitionStatus(ctx context.Context, id string, status domain.Status, notes string) (*Summary, error)
	UpdatePayment(ctx context.Context, id string, status domain.PaymentStatus, transactionID, notes string) (*Summary, error)
	DeleteOrder(ctx context.Context, id string) error
	RetryCompensation(ctx context.Context, id string) (*Summary, error)
	GetStats(ctx context.Context, periodDays int) (*domain.Stats, error)
}
