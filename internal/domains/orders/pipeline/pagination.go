package pipeline

import "math"

// Pagination is the envelope returned alongside a page of orders.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	TotalOrders int64
	Limit       int
	HasNextPage bool
	HasPrevPage bool
}

// Offset returns the number of records skipped before page. It saturates at
// math.MaxInt rather than wrapping.
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// Paginate derives the envelope for page of size limit over total records.
func Paginate(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 && total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalOrders: total,
		Limit:       limit,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
