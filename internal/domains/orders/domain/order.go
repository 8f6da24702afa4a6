package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the fulfilment lifecycle of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus enumerates the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

var (
	ErrInvalidID            = errors.New("order id is required")
	ErrInvalidStatus        = errors.New("order status is invalid")
	ErrInvalidPaymentStatus = errors.New("payment status is invalid")
	ErrInvalidLineItem      = errors.New("line item requires a product and a positive quantity")
	ErrNotDeletable         = errors.New("order can only be deleted while pending or cancelled")
)

// Statuses lists every order status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
}

// PaymentStatuses lists every payment status.
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	default:
		return false
	}
}

// BuyerSummary is the slice of buyer data attached to an order for search and display.
type BuyerSummary struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// LineItem is one product line of an order. UnitPrice is a snapshot taken at purchase time.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity times unit price.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusChange is one entry of the order audit trail.
type StatusChange struct {
	Field string
	From  string
	To    string
	Notes string
	At    time.Time
}

const (
	FieldStatus        = "status"
	FieldPaymentStatus = "paymentStatus"
)

// Order is the aggregate administered by the back-office.
type Order struct {
	ID            string
	BuyerID       string
	Buyer         *BuyerSummary
	Items         []LineItem
	TotalPrice    decimal.Decimal
	Status        Status
	PaymentStatus PaymentStatus
	IsPaid        bool
	PaidAt        *time.Time
	IsDelivered   bool
	DeliveredAt   *time.Time
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Version is bumped by the store on every successful save.
	Version int64
	// PendingCompensation holds line items whose stock has not been released yet.
	PendingCompensation []LineItem
	History             []StatusChange
}

// Transition describes the outcome of a status change and the restocks it requires.
type Transition struct {
	From    Status
	To      Status
	Restock []LineItem
}

// NewOrder builds a pending, unpaid order and derives its total from the line items.
func NewOrder(id, buyerID string, items []LineItem, createdAt time.Time) (*Order, error) {
	order := &Order{
		ID:            id,
		BuyerID:       buyerID,
		Items:         cloneItems(items),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	total := decimal.Zero
	for _, item := range order.Items {
		total = total.Add(item.Subtotal())
	}
	order.TotalPrice = total
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate enforces invariants on the aggregate.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return ErrInvalidID
	}
	if !o.Status.Valid() {
		return ErrInvalidStatus
	}
	if !o.PaymentStatus.Valid() {
		return ErrInvalidPaymentStatus
	}
	for _, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return ErrInvalidLineItem
		}
	}
	return nil
}

// TransitionTo moves the order to status. Any status may follow any other.
// Entering cancelled from another status queues every line item for restocking;
// a cancelled to cancelled transition queues nothing.
func (o *Order) TransitionTo(status Status, notes string, now time.Time) (Transition, error) {
	if !status.Valid() {
		return Transition{}, ErrInvalidStatus
	}
	from := o.Status
	result := Transition{From: from, To: status}

	if status == StatusDelivered {
		stamp := now
		o.IsDelivered = true
		o.DeliveredAt = &stamp
	} else if o.IsDelivered {
		o.IsDelivered = false
		o.DeliveredAt = nil
	}
	if status == StatusCancelled && from != StatusCancelled {
		result.Restock = cloneItems(o.Items)
		o.PendingCompensation = append(o.PendingCompensation, cloneItems(o.Items)...)
	}

	o.Status = status
	o.UpdatedAt = now
	o.History = append(o.History, StatusChange{Field: FieldStatus, From: string(from), To: string(status), Notes: notes, At: now})
	return result, nil
}

// UpdatePayment applies a payment status change keeping IsPaid in step with PaymentCompleted.
func (o *Order) UpdatePayment(status PaymentStatus, transactionID, notes string, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidPaymentStatus
	}
	from := o.PaymentStatus
	switch status {
	case PaymentCompleted:
		stamp := now
		o.IsPaid = true
		o.PaidAt = &stamp
		if strings.TrimSpace(transactionID) != "" {
			o.TransactionID = transactionID
		}
	default:
		// IsPaid holds only while completed, so leaving completed for pending clears it too.
		o.IsPaid = false
		o.PaidAt = nil
	}
	o.PaymentStatus = status
	o.UpdatedAt = now
	o.History = append(o.History, StatusChange{Field: FieldPaymentStatus, From: string(from), To: string(status), Notes: notes, At: now})
	return nil
}

// PrepareDeletion checks the order may be removed and cancels it if needed.
// The returned restock set contains everything still owed to inventory.
func (o *Order) PrepareDeletion(now time.Time) ([]LineItem, error) {
	switch o.Status {
	case StatusPending:
		if _, err := o.TransitionTo(StatusCancelled, "order deleted", now); err != nil {
			return nil, err
		}
	case StatusCancelled:
	default:
		return nil, ErrNotDeletable
	}
	return cloneItems(o.PendingCompensation), nil
}

// SettleCompensation drops restocked products from the pending compensation set.
func (o *Order) SettleCompensation(productIDs []string) {
	if len(productIDs) == 0 || len(o.PendingCompensation) == 0 {
		return
	}
	settled := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		settled[id]++
	}
	remaining := o.PendingCompensation[:0]
	for _, item := range o.PendingCompensation {
		if settled[item.ProductID] > 0 {
			settled[item.ProductID]--
			continue
		}
		remaining = append(remaining, item)
	}
	if len(remaining) == 0 {
		o.PendingCompensation = nil
		return
	}
	o.PendingCompensation = remaining
}

// HasPendingCompensation reports whether some stock is still owed to inventory.
func (o *Order) HasPendingCompensation() bool {
	return len(o.PendingCompensation) > 0
}

// Clone returns a deep copy safe to hand across adapter boundaries.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = cloneItems(o.Items)
	clone.PendingCompensation = cloneItems(o.PendingCompensation)
	if o.History != nil {
		clone.History = append([]StatusChange(nil), o.History...)
	}
	if o.Buyer != nil {
		buyer := *o.Buyer
		clone.Buyer = &buyer
	}
	if o.PaidAt != nil {
		paidAt := *o.PaidAt
		clone.PaidAt = &paidAt
	}
	if o.DeliveredAt != nil {
		deliveredAt := *o.DeliveredAt
		clone.DeliveredAt = &deliveredAt
	}
	return &clone
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	return append([]LineItem(nil), items...)
}
