package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

// ListQuery captures the raw query string of GET /admin/orders. Fields stay strings
// so malformed values surface as field errors instead of binding failures.
type ListQuery struct {
	Page          string `form:"page"`
	Limit         string `form:"limit"`
	Status        string `form:"status"`
	PaymentStatus string `form:"paymentStatus"`
	StartDate     string `form:"startDate"`
	EndDate       string `form:"endDate"`
	Search        string `form:"search"`
	SortBy        string `form:"sortBy"`
	SortOrder     string `form:"sortOrder"`
}

// ToQuerySpec parses q. The returned map holds one message per malformed parameter.
// Range and enumeration checks are left to QuerySpec.Validate.
func ToQuerySpec(q ListQuery) (pipeline.QuerySpec, map[string]string) {
	fieldErrors := map[string]string{}
	spec := pipeline.QuerySpec{
		Page:          pipeline.DefaultPage,
		Limit:         pipeline.DefaultLimit,
		Search:        q.Search,
		SortField:     pipeline.SortField(strings.TrimSpace(q.SortBy)),
		SortDirection: pipeline.Direction(strings.ToLower(strings.TrimSpace(q.SortOrder))),
	}
	if raw := strings.TrimSpace(q.Page); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors["page"] = "must be an integer"
		}
		spec.Page = page
	}
	if raw := strings.TrimSpace(q.Limit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors["limit"] = "must be an integer"
		}
		spec.Limit = limit
	}
	if raw := strings.TrimSpace(q.Status); raw != "" {
		status := domain.Status(raw)
		spec.Status = &status
	}
	if raw := strings.TrimSpace(q.PaymentStatus); raw != "" {
		payment := domain.PaymentStatus(raw)
		spec.PaymentStatus = &payment
	}
	if from, ok, err := parseBound(q.StartDate, false); err != nil {
		fieldErrors["startDate"] = err.Error()
	} else if ok {
		spec.From = &from
	}
	if to, ok, err := parseBound(q.EndDate, true); err != nil {
		fieldErrors["endDate"] = err.Error()
	} else if ok {
		spec.To = &to
	}
	return spec, fieldErrors
}

// parseBound accepts RFC 3339 timestamps or bare dates. A bare end date covers the whole day.
func parseBound(raw string, endOfDay bool) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("must be YYYY-MM-DD or RFC 3339")
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return day, true, nil
}

// QueryFields maps QuerySpec field names to the query parameters that feed them.
var QueryFields = map[string]string{
	"Page":          "page",
	"Limit":         "limit",
	"Status":        "status",
	"PaymentStatus": "paymentStatus",
	"From":          "startDate",
	"To":            "endDate",
	"Search":        "search",
	"SortField":     "sortBy",
	"SortDirection": "sortOrder",
}

// StatusUpdate is the body of PATCH /admin/orders/:id/status.
type StatusUpdate struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

// PaymentUpdate is the body of PATCH /admin/orders/:id/payment.
type PaymentUpdate struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
	TransactionID string `json:"transactionId,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type Buyer struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type LineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type StatusChange struct {
	Field string    `json:"field"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	Notes string    `json:"notes,omitempty"`
	At    time.Time `json:"at"`
}

// Order is the HTTP representation of an order aggregate.
type Order struct {
	ID                  string          `json:"id"`
	BuyerID             string          `json:"buyerId"`
	Buyer               *Buyer          `json:"buyer,omitempty"`
	Items               []LineItem      `json:"items"`
	TotalPrice          decimal.Decimal `json:"totalPrice"`
	Status              string          `json:"status"`
	PaymentStatus       string          `json:"paymentStatus"`
	IsPaid              bool            `json:"isPaid"`
	PaidAt              *time.Time      `json:"paidAt,omitempty"`
	IsDelivered         bool            `json:"isDelivered"`
	DeliveredAt         *time.Time      `json:"deliveredAt,omitempty"`
	TransactionID       string          `json:"transactionId,omitempty"`
	PendingCompensation []LineItem      `json:"pendingCompensation,omitempty"`
	History             []StatusChange  `json:"history,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// OrderPage is the response of GET /admin/orders.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type FailedRestock struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

type Compensation struct {
	Restocked       []string        `json:"restocked"`
	Failed          []FailedRestock `json:"failed,omitempty"`
	SettlementError string          `json:"settlementError,omitempty"`
}

// Summary is the response of every lifecycle mutation.
type Summary struct {
	ID                  string        `json:"id"`
	Status              string        `json:"status"`
	PaymentStatus       string        `json:"paymentStatus"`
	IsPaid              bool          `json:"isPaid"`
	PaidAt              *time.Time    `json:"paidAt,omitempty"`
	IsDelivered         bool          `json:"isDelivered"`
	DeliveredAt         *time.Time    `json:"deliveredAt,omitempty"`
	TransactionID       string        `json:"transactionId,omitempty"`
	Compensation        *Compensation `json:"compensation,omitempty"`
	PendingCompensation []LineItem    `json:"pendingCompensation,omitempty"`
}

type RecentOrder struct {
	ID         string          `json:"id"`
	Buyer      *Buyer          `json:"buyer,omitempty"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type DailySales struct {
	Date       string          `json:"date"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Day        int             `json:"day"`
	TotalSales decimal.Decimal `json:"totalSales"`
	OrderCount int64           `json:"orderCount"`
}

// Stats is the response of GET /admin/orders/stats.
type Stats struct {
	PeriodDays      int              `json:"periodDays"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	TotalOrders     int64            `json:"totalOrders"`
	TotalRevenue    decimal.Decimal  `json:"totalRevenue"`
	PeriodRevenue   decimal.Decimal  `json:"periodRevenue"`
	StatusBreakdown map[string]int64 `json:"statusBreakdown"`
	RecentOrders    []RecentOrder    `json:"recentOrders"`
	DailySales      []DailySales     `json:"dailySales"`
}

// FromDomainOrder converts an order aggregate into its HTTP shape.
func FromDomainOrder(order *domain.Order) Order {
	if order == nil {
		return Order{}
	}
	out := Order{
		ID:                  order.ID,
		BuyerID:             order.BuyerID,
		Buyer:               fromBuyer(order.Buyer),
		Items:               fromItems(order.Items),
		TotalPrice:          order.TotalPrice,
		Status:              string(order.Status),
		PaymentStatus:       string(order.PaymentStatus),
		IsPaid:              order.IsPaid,
		PaidAt:              order.PaidAt,
		IsDelivered:         order.IsDelivered,
		DeliveredAt:         order.DeliveredAt,
		TransactionID:       order.TransactionID,
		PendingCompensation: fromItems(order.PendingCompensation),
		Version:             order.Version,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	if out.Items == nil {
		out.Items = []LineItem{}
	}
	for _, change := range order.History {
		out.History = append(out.History, StatusChange{
			Field: change.Field,
			From:  change.From,
			To:    change.To,
			Notes: change.Notes,
			At:    change.At,
		})
	}
	return out
}

// FromPage converts a listing result. Orders is never nil so empty pages encode as [].
func FromPage(page *ports.Page) OrderPage {
	if page == nil {
		return OrderPage{Orders: []Order{}}
	}
	orders := make([]Order, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, FromDomainOrder(order))
	}
	p := page.Pagination
	return OrderPage{
		Orders: orders,
		Pagination: Pagination{
			CurrentPage: p.CurrentPage,
			TotalPages:  p.TotalPages,
			TotalOrders: p.TotalOrders,
			Limit:       p.Limit,
			HasNextPage: p.HasNextPage,
			HasPrevPage: p.HasPrevPage,
		},
	}
}

// FromSummary converts the outcome of a lifecycle operation.
func FromSummary(summary *ports.Summary) Summary {
	if summary == nil {
		return Summary{}
	}
	out := Summary{
		ID:                  summary.ID,
		Status:              string(summary.Status),
		PaymentStatus:       string(summary.PaymentStatus),
		IsPaid:              summary.IsPaid,
		PaidAt:              summary.PaidAt,
		IsDelivered:         summary.IsDelivered,
		DeliveredAt:         summary.DeliveredAt,
		TransactionID:       summary.TransactionID,
		PendingCompensation: fromItems(summary.PendingCompensation),
	}
	if report := summary.Compensation; report != nil {
		comp := &Compensation{Restocked: report.Restocked()}
		if comp.Restocked == nil {
			comp.Restocked = []string{}
		}
		for _, failed := range report.Failed() {
			comp.Failed = append(comp.Failed, FailedRestock{
				ProductID: failed.ProductID,
				Quantity:  failed.Quantity,
				Error:     failed.Err.Error(),
			})
		}
		if report.SettleErr != nil {
			comp.SettlementError = report.SettleErr.Error()
		}
		out.Compensation = comp
	}
	return out
}

// FromStats converts the reporting snapshot.
func FromStats(stats *domain.Stats) Stats {
	if stats == nil {
		return Stats{StatusBreakdown: map[string]int64{}, RecentOrders: []RecentOrder{}, DailySales: []DailySales{}}
	}
	out := Stats{
		PeriodDays:      stats.PeriodDays,
		GeneratedAt:     stats.GeneratedAt,
		TotalOrders:     stats.TotalOrders,
		TotalRevenue:    stats.TotalRevenue,
		PeriodRevenue:   stats.PeriodRevenue,
		StatusBreakdown: make(map[string]int64, len(stats.StatusBreakdown)),
		RecentOrders:    make([]RecentOrder, 0, len(stats.RecentOrders)),
		DailySales:      make([]DailySales, 0, len(stats.DailySales)),
	}
	for status, count := range stats.StatusBreakdown {
		out.StatusBreakdown[string(status)] = count
	}
	for _, recent := range stats.RecentOrders {
		out.RecentOrders = append(out.RecentOrders, RecentOrder{
			ID:         recent.ID,
			Buyer:      fromBuyer(recent.Buyer),
			TotalPrice: recent.TotalPrice,
			Status:     string(recent.Status),
			CreatedAt:  recent.CreatedAt,
		})
	}
	for _, day := range stats.DailySales {
		out.DailySales = append(out.DailySales, DailySales{
			Date:       day.Day.String(),
			Year:       day.Day.Year,
			Month:      int(day.Day.Month),
			Day:        day.Day.Day,
			TotalSales: day.TotalSales,
			OrderCount: day.OrderCount,
		})
	}
	return out
}

func fromBuyer(buyer *domain.BuyerSummary) *Buyer {
	if buyer == nil {
		return nil
	}
	return &Buyer{ID: buyer.ID, Name: buyer.Name, Email: buyer.Email, Phone: buyer.Phone}
}

func fromItems(items []domain.LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return out
}
