package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	order, err := NewOrder("ord-1", "buyer-1", []LineItem{
		{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
		{ProductID: "p-2", Quantity: 3, UnitPrice: decimal.RequireFromString("4.00")},
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return order
}

func TestNewOrder_DerivesTotal(t *testing.T) {
	order := newTestOrder(t)
	assert.True(t, decimal.RequireFromString("33").Equal(order.TotalPrice))
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, PaymentPending, order.PaymentStatus)
}

func TestNewOrder_RejectsInvalidItem(t *testing.T) {
	_, err := NewOrder("ord-1", "buyer-1", []LineItem{{ProductID: "p-1", Quantity: 0}}, time.Now())
	require.ErrorIs(t, err, ErrInvalidLineItem)
}

func TestTransitionTo_DeliveredStampsTime(t *testing.T) {
	order := newTestOrder(t)
	now := time.Now()

	tr, err := order.TransitionTo(StatusDelivered, "", now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tr.From)
	assert.Empty(t, tr.Restock)
	assert.True(t, order.IsDelivered)
	require.NotNil(t, order.DeliveredAt)
	assert.False(t, order.DeliveredAt.Before(now))
}

func TestTransitionTo_LeavingDeliveredClearsFlag(t *testing.T) {
	order := newTestOrder(t)
	_, err := order.TransitionTo(StatusDelivered, "", time.Now())
	require.NoError(t, err)

	_, err = order.TransitionTo(StatusShipped, "courier returned parcel", time.Now())
	require.NoError(t, err)
	assert.False(t, order.IsDelivered)
	assert.Nil(t, order.DeliveredAt)
}

func TestTransitionTo_CancelQueuesRestockOnce(t *testing.T) {
	order := newTestOrder(t)
	_, err := order.TransitionTo(StatusConfirmed, "", time.Now())
	require.NoError(t, err)

	tr, err := order.TransitionTo(StatusCancelled, "customer request", time.Now())
	require.NoError(t, err)
	assert.Len(t, tr.Restock, 2)
	assert.Len(t, order.PendingCompensation, 2)

	again, err := order.TransitionTo(StatusCancelled, "", time.Now())
	require.NoError(t, err)
	assert.Empty(t, again.Restock)
	assert.Len(t, order.PendingCompensation, 2)
}

func TestTransitionTo_InvalidStatus(t *testing.T) {
	order := newTestOrder(t)
	_, err := order.TransitionTo(Status("lost"), "", time.Now())
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusPending, order.Status)
	assert.Empty(t, order.History)
}

func TestUpdatePayment(t *testing.T) {
	order := newTestOrder(t)
	now := time.Now()

	require.NoError(t, order.UpdatePayment(PaymentCompleted, "tx-42", "", now))
	assert.True(t, order.IsPaid)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, "tx-42", order.TransactionID)

	require.NoError(t, order.UpdatePayment(PaymentFailed, "", "card chargeback", now))
	assert.False(t, order.IsPaid)
	assert.Nil(t, order.PaidAt)
	assert.Equal(t, "tx-42", order.TransactionID)

	require.ErrorIs(t, order.UpdatePayment(PaymentStatus("refunded"), "", "", now), ErrInvalidPaymentStatus)
	require.Len(t, order.History, 2)
	assert.Equal(t, FieldPaymentStatus, order.History[1].Field)
	assert.Equal(t, "card chargeback", order.History[1].Notes)
}

func TestPrepareDeletion(t *testing.T) {
	order := newTestOrder(t)
	restock, err := order.PrepareDeletion(time.Now())
	require.NoError(t, err)
	assert.Len(t, restock, 2)
	assert.Equal(t, StatusCancelled, order.Status)

	shipped := newTestOrder(t)
	_, err = shipped.TransitionTo(StatusShipped, "", time.Now())
	require.NoError(t, err)
	_, err = shipped.PrepareDeletion(time.Now())
	require.ErrorIs(t, err, ErrNotDeletable)
	assert.Empty(t, shipped.PendingCompensation)
}

func TestSettleCompensation(t *testing.T) {
	order := newTestOrder(t)
	_, err := order.TransitionTo(StatusCancelled, "", time.Now())
	require.NoError(t, err)

	order.SettleCompensation([]string{"p-1"})
	require.Len(t, order.PendingCompensation, 1)
	assert.Equal(t, "p-2", order.PendingCompensation[0].ProductID)

	order.SettleCompensation([]string{"p-2"})
	assert.False(t, order.HasPendingCompensation())
}

func TestClone_IsDeep(t *testing.T) {
	order := newTestOrder(t)
	order.Buyer = &BuyerSummary{ID: "buyer-1", Name: "Ada"}
	clone := order.Clone()
	clone.Items[0].Quantity = 99
	clone.Buyer.Name = "Grace"
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "Ada", order.Buyer.Name)

	_, err := order.TransitionTo(StatusCancelled, "", time.Now())
	require.NoError(t, err)
	settled := order.Clone()
	settled.SettleCompensation([]string{"p-1", "p-2"})
	assert.False(t, settled.HasPendingCompensation())
	assert.Len(t, order.PendingCompensation, 2)
}

func TestCompensationReport_CompleteNeedsSettlement(t *testing.T) {
	report := CompensationReport{Results: []RestockResult{{ProductID: "p-1", Quantity: 1}}}
	assert.True(t, report.Complete())

	report.SettleErr = errors.New("save failed")
	assert.False(t, report.Complete())
	assert.Equal(t, []string{"p-1"}, report.Restocked())
}

func TestDay_Ordering(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	late := time.Date(2026, 1, 31, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, Day{Year: 2026, Month: time.February, Day: 1}, DayOf(late, loc))
	assert.True(t, Day{2025, time.December, 31}.Before(Day{2026, time.January, 1}))
	assert.False(t, Day{2026, time.January, 2}.Before(Day{2026, time.January, 2}))
	assert.Equal(t, "2026-01-02", Day{2026, time.January, 2}.String())
}
