package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

// SortField enumerates the sortable order attributes.
type SortField string

const (
	SortCreatedAt     SortField = "createdAt"
	SortTotalPrice    SortField = "totalPrice"
	SortStatus        SortField = "status"
	SortPaymentStatus SortField = "paymentStatus"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrInvalidQuery wraps every QuerySpec validation failure.
var ErrInvalidQuery = errors.New("invalid order query")

// QuerySpec is the typed admin listing request.
type QuerySpec struct {
	Page          int                   `validate:"min=1"`
	Limit         int                   `validate:"min=1,max=100"`
	Status        *domain.Status        `validate:"omitempty,oneof=pending confirmed processing shipped delivered cancelled"`
	PaymentStatus *domain.PaymentStatus `validate:"omitempty,oneof=pending completed failed cancelled"`
	From          *time.Time
	To            *time.Time
	Search        string    `validate:"max=200"`
	SortField     SortField `validate:"omitempty,oneof=createdAt totalPrice status paymentStatus"`
	SortDirection Direction `validate:"omitempty,oneof=asc desc"`
}

// WithDefaults fills the sort order when the caller left it empty.
func (q QuerySpec) WithDefaults() QuerySpec {
	if q.SortField == "" {
		q.SortField = SortCreatedAt
	}
	if q.SortDirection == "" {
		q.SortDirection = Desc
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

var validate = newValidator()

func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(querySpecStructValidation, QuerySpec{})
	return v
}

// querySpecStructValidation rejects inverted date ranges and pages whose offset does not fit an int.
func querySpecStructValidation(sl validatorv10.StructLevel) {
	q := sl.Current().Interface().(QuerySpec)
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		sl.ReportError(q.From, "From", "From", "from_before_to", "")
	}
	if q.Page > 1 && q.Limit > 0 && q.Page-1 > math.MaxInt/q.Limit {
		sl.ReportError(q.Page, "Page", "Page", "offset_in_range", "")
	}
}

// QueryError lists the fields of a QuerySpec that failed validation.
type QueryError struct {
	Fields map[string]string
}

func (e *QueryError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, rule := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s failed %s", field, rule))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s: %s", ErrInvalidQuery, strings.Join(parts, ", "))
}

func (e *QueryError) Unwrap() error { return ErrInvalidQuery }

// Validate checks the spec. Failures are *QueryError values wrapping ErrInvalidQuery.
func (q QuerySpec) Validate() error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validatorv10.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	qerr := &QueryError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		qerr.Fields[fe.Field()] = fe.Tag()
	}
	return qerr
}
