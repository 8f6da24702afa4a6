package pipeline

import (
	"time"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

// Plan is the shared filter prefix of a listing request plus its paging parameters.
// Page and Count derive both executable variants from the same prefix, so the total
// always reflects the predicates of the returned page.
type Plan struct {
	filters Pipeline
	sort    Sort
	skip    int
	limit   int
}

// Build translates a validated QuerySpec into a Plan. Callers validate first;
// Build only applies defaults.
func Build(q QuerySpec) Plan {
	q = q.WithDefaults()
	filters := Pipeline{JoinBuyer{}}
	if q.Search != "" {
		filters = append(filters, FilterBySearch{Term: q.Search})
	}
	fields := FilterByFields{
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		From:          q.From,
		To:            q.To,
	}
	if !fields.Empty() {
		filters = append(filters, fields)
	}
	return Plan{
		filters: filters,
		sort:    Sort{Field: q.SortField, Direction: q.SortDirection},
		skip:    Offset(q.Page, q.Limit),
		limit:   q.Limit,
	}
}

// Filters returns a copy of the shared filter prefix.
func (p Plan) Filters() Pipeline {
	return append(Pipeline(nil), p.filters...)
}

// Page returns the filter prefix followed by Sort, Skip and Limit.
func (p Plan) Page() Pipeline {
	return append(p.Filters(), p.sort, Skip{N: p.skip}, Limit{N: p.limit})
}

// Count returns the filter prefix followed by a terminal Count.
func (p Plan) Count() Pipeline {
	return append(p.Filters(), Count{})
}

// Window returns a created-at range filter for reporting, optionally restricted to a payment status.
func Window(from, to time.Time, payment *domain.PaymentStatus) FilterByFields {
	return FilterByFields{From: &from, To: &to, PaymentStatus: payment}
}

// Recent returns the pipeline for the newest n orders created in [from, to].
func Recent(from, to time.Time, n int) Pipeline {
	return Pipeline{
		JoinBuyer{},
		Window(from, to, nil),
		Sort{Field: SortCreatedAt, Direction: Desc},
		Limit{N: n},
	}
}

// Aggregate returns a pipeline grouping the orders matched by filter.
func Aggregate(filter FilterByFields, group Group) Pipeline {
	if filter.Empty() {
		return Pipeline{group}
	}
	return Pipeline{filter, group}
}
