package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Day is a calendar day in the reporting time zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// Before orders days chronologically by (year, month, day).
func (d Day) Before(other Day) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Day) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// DailySales is the completed-payment revenue of one day.
type DailySales struct {
	Day        Day
	TotalSales decimal.Decimal
	OrderCount int64
}

// RecentOrder is the reduced view of an order used by the dashboard.
type RecentOrder struct {
	ID         string
	Buyer      *BuyerSummary
	TotalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time
}

// Stats summarises order activity as of GeneratedAt.
type Stats struct {
	PeriodDays      int
	GeneratedAt     time.Time
	TotalOrders     int64
	TotalRevenue    decimal.Decimal
	PeriodRevenue   decimal.Decimal
	StatusBreakdown map[Status]int64
	RecentOrders    []RecentOrder
	DailySales      []DailySales
}
