package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var _ ports.Store = (*Store)(nil)

// Store is an in-memory order store that evaluates pipelines stage by stage.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	buyers map[string]domain.BuyerSummary
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		orders: map[string]*domain.Order{},
		buyers: map[string]domain.BuyerSummary{},
		now:    time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (s *Store) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PutBuyer registers the buyer summary joined onto orders.
func (s *Store) PutBuyer(buyer domain.BuyerSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[buyer.ID] = buyer
}

func (s *Store) Save(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	clone := order.Clone()
	clone.Buyer = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orders[clone.ID]
	switch {
	case ok && existing.Version != clone.Version:
		return nil, ports.ErrConflict
	case !ok && clone.Version != 0:
		return nil, ports.ErrConflict
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = s.now()
	}
	clone.Version++
	s.orders[clone.ID] = clone
	return s.withBuyer(clone.Clone()), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return s.withBuyer(order.Clone()), nil
}

func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) ExecuteQuery(_ context.Context, p pipeline.Pipeline) ([]*domain.Order, error) {
	if n := len(p); n > 0 {
		switch p[n-1].(type) {
		case pipeline.Count, pipeline.Group:
			return nil, fmt.Errorf("%w: query pipeline ends in a terminal stage", pipeline.ErrInvalidPipeline)
		}
	}
	return s.evaluate(p)
}

func (s *Store) ExecuteCount(_ context.Context, p pipeline.Pipeline) (int64, error) {
	prefix, err := splitTerminal[pipeline.Count](p)
	if err != nil {
		return 0, err
	}
	matched, err := s.evaluate(prefix)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *Store) ExecuteAggregate(_ context.Context, p pipeline.Pipeline) ([]ports.AggregateRow, error) {
	prefix, err := splitTerminal[pipeline.Group](p)
	if err != nil {
		return nil, err
	}
	group := p[len(p)-1].(pipeline.Group)
	matched, err := s.evaluate(prefix)
	if err != nil {
		return nil, err
	}
	return aggregate(matched, group), nil
}

func (s *Store) evaluate(p pipeline.Pipeline) ([]*domain.Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	result := make([]*domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		result = append(result, order.Clone())
	}
	buyers := make(map[string]domain.BuyerSummary, len(s.buyers))
	for id, b := range s.buyers {
		buyers[id] = b
	}
	s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	for _, st := range p {
		switch stage := st.(type) {
		case pipeline.JoinBuyer:
			for _, order := range result {
				if buyer, ok := buyers[order.BuyerID]; ok {
					b := buyer
					order.Buyer = &b
				}
			}
		case pipeline.FilterBySearch:
			result = filter(result, func(o *domain.Order) bool { return matchesSearch(o, stage.Term) })
		case pipeline.FilterByFields:
			result = filter(result, stage.Matches)
		case pipeline.Sort:
			sortOrders(result, stage)
		case pipeline.Skip:
			if stage.N >= len(result) {
				result = result[:0]
			} else if stage.N > 0 {
				result = result[stage.N:]
			}
		case pipeline.Limit:
			if stage.N >= 0 && stage.N < len(result) {
				result = result[:stage.N]
			}
		}
	}
	return result, nil
}

func (s *Store) withBuyer(order *domain.Order) *domain.Order {
	if buyer, ok := s.buyers[order.BuyerID]; ok {
		b := buyer
		order.Buyer = &b
	}
	return order
}

func splitTerminal[T pipeline.Stage](p pipeline.Pipeline) (pipeline.Pipeline, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty pipeline", pipeline.ErrInvalidPipeline)
	}
	if _, ok := p[len(p)-1].(T); !ok {
		var want T
		return nil, fmt.Errorf("%w: pipeline must end in %T", pipeline.ErrInvalidPipeline, want)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p[:len(p)-1], nil
}

func filter(orders []*domain.Order, keep func(*domain.Order) bool) []*domain.Order {
	out := orders[:0]
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func matchesSearch(o *domain.Order, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(o.ID), term) {
		return true
	}
	if o.Buyer == nil {
		return false
	}
	for _, field := range []string{o.Buyer.Name, o.Buyer.Email, o.Buyer.Phone} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func sortOrders(orders []*domain.Order, by pipeline.Sort) {
	less := func(a, b *domain.Order) int {
		switch by.Field {
		case pipeline.SortTotalPrice:
			return a.TotalPrice.Cmp(b.TotalPrice)
		case pipeline.SortStatus:
			return strings.Compare(string(a.Status), string(b.Status))
		case pipeline.SortPaymentStatus:
			return strings.Compare(string(a.PaymentStatus), string(b.PaymentStatus))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		c := less(orders[i], orders[j])
		if c == 0 {
			c = strings.Compare(orders[i].ID, orders[j].ID)
		}
		if by.Direction == pipeline.Asc {
			return c < 0
		}
		return c > 0
	})
}

func aggregate(orders []*domain.Order, group pipeline.Group) []ports.AggregateRow {
	type key struct {
		status domain.Status
		day    domain.Day
	}
	rows := map[key]*ports.AggregateRow{}
	var keys []key
	for _, o := range orders {
		var k key
		switch group.By {
		case pipeline.GroupStatus:
			k.status = o.Status
		case pipeline.GroupDay:
			k.day = domain.DayOf(o.CreatedAt, group.Location)
		}
		row, ok := rows[k]
		if !ok {
			row = &ports.AggregateRow{Status: k.status, Day: k.day, Total: decimal.Zero}
			rows[k] = row
			keys = append(keys, k)
		}
		row.Count++
		row.Total = row.Total.Add(o.TotalPrice)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day.Before(keys[j].day)
		}
		return keys[i].status < keys[j].status
	})
	out := make([]ports.AggregateRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, *rows[k])
	}
	return out
}
