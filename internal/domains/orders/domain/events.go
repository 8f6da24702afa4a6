package domain

import "time"

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	OrderID   string    `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the order the event belongs to.
func (e BaseEvent) AggregateID() string {
	return e.OrderID
}

// OrderStatusChanged is raised after a status transition is persisted.
type OrderStatusChanged struct {
	BaseEvent
	FromStatus Status `json:"fromStatus"`
	ToStatus   Status `json:"toStatus"`
	Notes      string `json:"notes,omitempty"`
}

func (e OrderStatusChanged) EventName() string {
	return "orders.order.status_changed"
}

// PaymentStatusChanged is raised after a payment status update is persisted.
type PaymentStatusChanged struct {
	BaseEvent
	FromStatus    PaymentStatus `json:"fromStatus"`
	ToStatus      PaymentStatus `json:"toStatus"`
	TransactionID string        `json:"transactionId,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

func (e PaymentStatusChanged) EventName() string {
	return "orders.order.payment_changed"
}

// OrderDeleted is raised when an order is permanently removed.
type OrderDeleted struct {
	BaseEvent
	PreviousStatus Status `json:"previousStatus"`
}

func (e OrderDeleted) EventName() string {
	return "orders.order.deleted"
}

// CompensationFailed is raised when some line items could not be returned to inventory.
type CompensationFailed struct {
	BaseEvent
	FailedProductIDs []string `json:"failedProductIds"`
}

func (e CompensationFailed) EventName() string {
	return "orders.compensation.failed"
}
