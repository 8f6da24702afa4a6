// Package pipeline builds the ordered retrieval stages the order stores execute.
// The vocabulary is closed: store adapters switch exhaustively over the stage types below.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
)

// Stage is one step of a retrieval pipeline.
type Stage interface {
	stage()
}

// JoinBuyer attaches the buyer summary to every order.
type JoinBuyer struct{}

// FilterBySearch keeps orders whose id, buyer name, buyer email or buyer phone
// contains Term, case-insensitively.
type FilterBySearch struct {
	Term string
}

// FilterByFields keeps orders matching every non-nil predicate. From and To are inclusive.
type FilterByFields struct {
	Status        *domain.Status
	PaymentStatus *domain.PaymentStatus
	From          *time.Time
	To            *time.Time
}

// Empty reports whether the filter has no predicate.
func (f FilterByFields) Empty() bool {
	return f.Status == nil && f.PaymentStatus == nil && f.From == nil && f.To == nil
}

// Matches evaluates the predicates against an order.
func (f FilterByFields) Matches(o *domain.Order) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Sort orders the result set.
type Sort struct {
	Field     SortField
	Direction Direction
}

// Skip drops the first N records.
type Skip struct {
	N int
}

// Limit keeps at most N records.
type Limit struct {
	N int
}

// Count replaces the result set with its cardinality. It must be the last stage.
type Count struct{}

// GroupKey selects the grouping of an aggregate stage.
type GroupKey string

const (
	GroupNone   GroupKey = "none"
	GroupStatus GroupKey = "status"
	GroupDay    GroupKey = "day"
)

// Group aggregates the filtered orders into rows of count and total price.
// Day groups use Location to resolve calendar days. It must be the last stage.
type Group struct {
	By       GroupKey
	Location *time.Location
}

func (JoinBuyer) stage()      {}
func (FilterBySearch) stage() {}
func (FilterByFields) stage() {}
func (Sort) stage()           {}
func (Skip) stage()           {}
func (Limit) stage()          {}
func (Count) stage()          {}
func (Group) stage()          {}

// Pipeline is an ordered sequence of stages.
type Pipeline []Stage

// ErrInvalidPipeline is returned by stores for pipelines that break the stage ordering rules.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// Validate checks the ordering rules every store relies on: searches need the buyer join,
// nothing follows a terminal stage, and sort or paging stages come after all filters.
func (p Pipeline) Validate() error {
	joined := false
	paging := false
	for i, st := range p {
		switch s := st.(type) {
		case JoinBuyer:
			if paging {
				return fmt.Errorf("%w: join after paging stages", ErrInvalidPipeline)
			}
			joined = true
		case FilterBySearch:
			if !joined {
				return fmt.Errorf("%w: search requires a preceding buyer join", ErrInvalidPipeline)
			}
			if paging {
				return fmt.Errorf("%w: search after paging stages", ErrInvalidPipeline)
			}
		case FilterByFields:
			if paging {
				return fmt.Errorf("%w: field filter after paging stages", ErrInvalidPipeline)
			}
		case Sort, Skip, Limit:
			paging = true
		case Count, Group:
			if i != len(p)-1 {
				return fmt.Errorf("%w: terminal stage %T is not last", ErrInvalidPipeline, s)
			}
			if g, ok := s.(Group); ok && g.By != GroupNone && g.By != GroupStatus && g.By != GroupDay {
				return fmt.Errorf("%w: unknown group key %q", ErrInvalidPipeline, g.By)
			}
		case nil:
			return fmt.Errorf("%w: nil stage at %d", ErrInvalidPipeline, i)
		default:
			return fmt.Errorf("%w: unsupported stage %T", ErrInvalidPipeline, s)
		}
	}
	return nil
}
