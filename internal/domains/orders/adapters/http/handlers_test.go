package ordershttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/http/mapper"
	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-admin/internal/domains/orders/adapters/workflows"
	"github.com/Apurer/go-order-admin/internal/domains/orders/application"
	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	apierrors "github.com/Apurer/go-order-admin/internal/shared/errors"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type testApp struct {
	store     *memory.Store
	inventory *memory.Inventory
	router    *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	store.PutBuyer(domain.BuyerSummary{ID: "b-1", Name: "Grace Hopper", Email: "grace@example.com"})
	inventory := memory.NewInventory()
	inventory.SetStock("p-1", 10)
	inventory.SetStock("p-2", 10)
	svc := application.NewService(
		store,
		workflows.NewInlineCompensator(inventory, 2),
		application.WithClock(func() time.Time { return now }),
	)
	router := gin.New()
	router.Use(gin.Recovery())
	return &testApp{
		store:     store,
		inventory: inventory,
		router:    NewRouterWithGinEngine(router, NewOrdersAPI(svc)),
	}
}

func (a *testApp) addOrder(t *testing.T, id string, createdAt time.Time, status domain.Status) {
	t.Helper()
	order, err := domain.NewOrder(id, "b-1", []domain.LineItem{
		{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
		{ProductID: "p-2", Quantity: 3, UnitPrice: decimal.NewFromInt(5)},
	}, createdAt)
	require.NoError(t, err)
	order.Status = status
	_, err = a.store.Save(context.Background(), order)
	require.NoError(t, err)
}

func (a *testApp) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) apierrors.ProblemDetail {
	t.Helper()
	assert.Equal(t, apierrors.ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	var problem apierrors.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestListOrders_ReturnsPageEnvelope(t *testing.T) {
	app := newTestApp(t)
	base := now.AddDate(0, 0, -5)
	for i := 0; i < 25; i++ {
		app.addOrder(t, fmt.Sprintf("ord-%02d", i), base.Add(time.Duration(i)*time.Minute), domain.StatusPending)
	}

	rec := app.do(t, http.MethodGet, "/admin/orders?page=2&limit=10&sortBy=createdAt&sortOrder=asc", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page mapper.OrderPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Orders, 10)
	assert.Equal(t, "ord-10", page.Orders[0].ID)
	assert.Equal(t, "Grace Hopper", page.Orders[0].Buyer.Name)
	assert.Equal(t, mapper.Pagination{
		CurrentPage: 2,
		TotalPages:  3,
		TotalOrders: 25,
		Limit:       10,
		HasNextPage: true,
		HasPrevPage: true,
	}, page.Pagination)
}

func TestListOrders_EmptyResultEncodesEmptyArray(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/admin/orders?search=nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orders":[]`)
	assert.Contains(t, rec.Body.String(), `"totalPages":0`)
}

func TestListOrders_RejectsInvalidParameters(t *testing.T) {
	app := newTestApp(t)

	cases := map[string]struct {
		query string
		field string
	}{
		"non numeric page": {"page=abc", "page"},
		"zero page":        {"page=0", "page"},
		"limit too large":  {"limit=500", "limit"},
		"unknown status":   {"status=lost", "status"},
		"bad sort field":   {"sortBy=buyer", "sortBy"},
		"malformed date":   {"startDate=yesterday", "startDate"},
		"inverted range":   {"startDate=2026-05-10&endDate=2026-05-01", "startDate"},
		"page past offset": {"page=9223372036854775807&limit=100", "page"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := app.do(t, http.MethodGet, "/admin/orders?"+tc.query, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, apierrors.TypeValidation, problem.Type)
			fields, ok := problem.Extensions["fields"].(map[string]any)
			require.True(t, ok, rec.Body.String())
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestGetOrder(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-1", now.Add(-time.Hour), domain.StatusConfirmed)

	rec := app.do(t, http.MethodGet, "/admin/orders/ord-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var order mapper.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, "confirmed", order.Status)
	require.Len(t, order.Items, 2)
	assert.True(t, decimal.NewFromInt(25).Equal(order.TotalPrice))

	missing := app.do(t, http.MethodGet, "/admin/orders/ord-404", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
	problem := decodeProblem(t, missing)
	assert.Equal(t, apierrors.TypeNotFound, problem.Type)
	assert.Equal(t, "/admin/orders/ord-404", problem.Instance)
}

func TestUpdateStatus_CancelRestocksInventory(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-1", now.Add(-time.Hour), domain.StatusConfirmed)

	rec := app.do(t, http.MethodPatch, "/admin/orders/ord-1/status", mapper.StatusUpdate{Status: "cancelled", Notes: "customer request"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary mapper.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "cancelled", summary.Status)
	require.NotNil(t, summary.Compensation)
	assert.ElementsMatch(t, []string{"p-1", "p-2"}, summary.Compensation.Restocked)
	assert.Empty(t, summary.PendingCompensation)
	assert.Equal(t, 12, app.inventory.Stock("p-1"))
	assert.Equal(t, 13, app.inventory.Stock("p-2"))

	again := app.do(t, http.MethodPatch, "/admin/orders/ord-1/status", mapper.StatusUpdate{Status: "cancelled"})
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, 12, app.inventory.Stock("p-1"))
}

func TestUpdateStatus_PartialFailureReportsPendingItems(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-1", now.Add(-time.Hour), domain.StatusProcessing)
	app.inventory.FailOn("p-2", fmt.Errorf("warehouse offline"))

	rec := app.do(t, http.MethodPatch, "/admin/orders/ord-1/status", mapper.StatusUpdate{Status: "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary mapper.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.NotNil(t, summary.Compensation)
	require.Len(t, summary.Compensation.Failed, 1)
	assert.Equal(t, "p-2", summary.Compensation.Failed[0].ProductID)
	require.Len(t, summary.PendingCompensation, 1)

	app.inventory.FailOn("p-2", nil)
	retry := app.do(t, http.MethodPost, "/admin/orders/ord-1/compensation", nil)
	require.Equal(t, http.StatusOK, retry.Code, retry.Body.String())
	summary = mapper.Summary{}
	require.NoError(t, json.Unmarshal(retry.Body.Bytes(), &summary))
	assert.Empty(t, summary.PendingCompensation)
	assert.Equal(t, 13, app.inventory.Stock("p-2"))
}

func TestUpdateStatus_Rejections(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-1", now.Add(-time.Hour), domain.StatusPending)

	bad := app.do(t, http.MethodPatch, "/admin/orders/ord-1/status", mapper.StatusUpdate{Status: "lost"})
	require.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, apierrors.TypeValidation, decodeProblem(t, bad).Type)

	missingField := app.do(t, http.MethodPatch, "/admin/orders/ord-1/status", map[string]string{"notes": "x"})
	require.Equal(t, http.StatusBadRequest, missingField.Code)
	assert.Equal(t, apierrors.TypeBadRequest, decodeProblem(t, missingField).Type)

	missingOrder := app.do(t, http.MethodPatch, "/admin/orders/ord-9/status", mapper.StatusUpdate{Status: "shipped"})
	require.Equal(t, http.StatusNotFound, missingOrder.Code)
}

func TestUpdatePayment(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-1", now.Add(-time.Hour), domain.StatusConfirmed)

	rec := app.do(t, http.MethodPatch, "/admin/orders/ord-1/payment", mapper.PaymentUpdate{PaymentStatus: "completed", TransactionID: "tx-42"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary mapper.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.IsPaid)
	assert.Equal(t, "tx-42", summary.TransactionID)
	require.NotNil(t, summary.PaidAt)

	rec = app.do(t, http.MethodPatch, "/admin/orders/ord-1/payment", mapper.PaymentUpdate{PaymentStatus: "failed"})
	require.Equal(t, http.StatusOK, rec.Code)
	summary = mapper.Summary{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.False(t, summary.IsPaid)
	assert.Nil(t, summary.PaidAt)

	bad := app.do(t, http.MethodPatch, "/admin/orders/ord-1/payment", mapper.PaymentUpdate{PaymentStatus: "refunded"})
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestDeleteOrder(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-pending", now.Add(-time.Hour), domain.StatusPending)
	app.addOrder(t, "ord-shipped", now.Add(-time.Hour), domain.StatusShipped)

	shipped := app.do(t, http.MethodDelete, "/admin/orders/ord-shipped", nil)
	require.Equal(t, http.StatusConflict, shipped.Code)
	assert.Equal(t, apierrors.TypeInvalidState, decodeProblem(t, shipped).Type)
	assert.Equal(t, 10, app.inventory.Stock("p-1"))

	pending := app.do(t, http.MethodDelete, "/admin/orders/ord-pending", nil)
	require.Equal(t, http.StatusNoContent, pending.Code)
	assert.Equal(t, 12, app.inventory.Stock("p-1"))

	gone := app.do(t, http.MethodGet, "/admin/orders/ord-pending", nil)
	require.Equal(t, http.StatusNotFound, gone.Code)
}

func TestGetStats(t *testing.T) {
	app := newTestApp(t)
	app.addOrder(t, "ord-1", now.AddDate(0, 0, -2), domain.StatusShipped)
	app.addOrder(t, "ord-2", now.AddDate(0, 0, -1), domain.StatusPending)

	rec := app.do(t, http.MethodGet, "/admin/orders/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats mapper.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, application.DefaultStatsPeriod, stats.PeriodDays)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.StatusBreakdown["shipped"])
	assert.Equal(t, int64(0), stats.StatusBreakdown["delivered"])
	require.Len(t, stats.RecentOrders, 2)
	assert.Equal(t, "ord-2", stats.RecentOrders[0].ID)

	short := app.do(t, http.MethodGet, "/admin/orders/stats?period=7", nil)
	require.Equal(t, http.StatusOK, short.Code)

	for _, period := range []string{"abc", "0"} {
		bad := app.do(t, http.MethodGet, "/admin/orders/stats?period="+period, nil)
		require.Equal(t, http.StatusBadRequest, bad.Code, period)
	}
}

func TestMapOrderError(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("%w: boom", application.ErrInvalidInput):      http.StatusBadRequest,
		fmt.Errorf("%w: boom", application.ErrNotFound):          http.StatusNotFound,
		fmt.Errorf("%w: boom", application.ErrInvalidState):      http.StatusConflict,
		fmt.Errorf("%w: boom", application.ErrConflict):          http.StatusConflict,
		fmt.Errorf("%w: boom", application.ErrDependencyFailure): http.StatusBadGateway,
	}
	for err, status := range cases {
		problem, ok := MapOrderError(err)
		require.True(t, ok, err.Error())
		assert.Equal(t, status, problem.Status, err.Error())
	}
	_, ok := MapOrderError(fmt.Errorf("unclassified"))
	assert.False(t, ok)
}
