package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var _ ports.Store = (*Store)(nil)

// Store persists orders in PostgreSQL using GORM and translates retrieval
// pipelines into SQL. Caller manages DB lifecycle; the schema comes from migrations.Run.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var sortColumns = map[pipeline.SortField]string{
	pipeline.SortCreatedAt:     "o.created_at",
	pipeline.SortTotalPrice:    "o.total_price",
	pipeline.SortStatus:        "o.status",
	pipeline.SortPaymentStatus: "o.payment_status",
}

// ExecuteQuery resolves the matching order ids in pipeline order, then loads the aggregates.
func (s *Store) ExecuteQuery(ctx context.Context, p pipeline.Pipeline) ([]*domain.Order, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	if n := len(p); n > 0 {
		switch p[n-1].(type) {
		case pipeline.Count, pipeline.Group:
			return nil, fmt.Errorf("%w: query pipeline ends in a terminal stage", pipeline.ErrInvalidPipeline)
		}
	}
	q, joined, err := s.translate(ctx, p)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := q.Pluck("o.id", &ids).Error; err != nil {
		return nil, err
	}
	return s.load(ctx, s.db.WithContext(ctx), ids, joined)
}

func (s *Store) ExecuteCount(ctx context.Context, p pipeline.Pipeline) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	prefix, err := splitTerminal[pipeline.Count](p)
	if err != nil {
		return 0, err
	}
	q, _, err := s.translate(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

type aggregateRow struct {
	Status string
	Day    string
	Count  int64
	Total  decimal.Decimal
}

// ExecuteAggregate groups the matched orders. Day groups bucket created_at in the
// stage's location, which must be an IANA zone name Postgres understands.
func (s *Store) ExecuteAggregate(ctx context.Context, p pipeline.Pipeline) ([]ports.AggregateRow, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	prefix, err := splitTerminal[pipeline.Group](p)
	if err != nil {
		return nil, err
	}
	group := p[len(p)-1].(pipeline.Group)
	q, _, err := s.translate(ctx, prefix)
	if err != nil {
		return nil, err
	}

	const measures = "COUNT(*) AS count, COALESCE(SUM(o.total_price), 0) AS total"
	switch group.By {
	case pipeline.GroupStatus:
		q = q.Select("o.status AS status, " + measures).Group("o.status").Order("o.status")
	case pipeline.GroupDay:
		zone := "UTC"
		if group.Location != nil {
			zone = group.Location.String()
		}
		q = q.Select("to_char(o.created_at AT TIME ZONE ?, 'YYYY-MM-DD') AS day, "+measures, zone).
			Group("day").Order("day")
	default:
		q = q.Select(measures)
	}

	var rows []aggregateRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.AggregateRow, 0, len(rows))
	for _, row := range rows {
		if group.By == pipeline.GroupNone && row.Count == 0 {
			continue
		}
		agg := ports.AggregateRow{Status: domain.Status(row.Status), Count: row.Count, Total: row.Total}
		if group.By == pipeline.GroupDay {
			day, err := time.Parse(time.DateOnly, row.Day)
			if err != nil {
				return nil, fmt.Errorf("parse aggregate day %q: %w", row.Day, err)
			}
			agg.Day = domain.DayOf(day, time.UTC)
		}
		out = append(out, agg)
	}
	return out, nil
}

// translate builds the filtering, sorting and paging part of a non-terminal pipeline.
func (s *Store) translate(ctx context.Context, p pipeline.Pipeline) (*gorm.DB, bool, error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}
	q := s.db.WithContext(ctx).Table("orders AS o")
	joined := false
	for _, st := range p {
		switch stage := st.(type) {
		case pipeline.JoinBuyer:
			q = q.Joins("LEFT JOIN buyers AS b ON b.id = o.buyer_id")
			joined = true
		case pipeline.FilterBySearch:
			pattern := "%" + escapeLike(stage.Term) + "%"
			q = q.Where("(o.id ILIKE ? OR b.name ILIKE ? OR b.email ILIKE ? OR b.phone ILIKE ?)",
				pattern, pattern, pattern, pattern)
		case pipeline.FilterByFields:
			if stage.Status != nil {
				q = q.Where("o.status = ?", string(*stage.Status))
			}
			if stage.PaymentStatus != nil {
				q = q.Where("o.payment_status = ?", string(*stage.PaymentStatus))
			}
			if stage.From != nil {
				q = q.Where("o.created_at >= ?", *stage.From)
			}
			if stage.To != nil {
				q = q.Where("o.created_at <= ?", *stage.To)
			}
		case pipeline.Sort:
			column, ok := sortColumns[stage.Field]
			if !ok {
				return nil, false, fmt.Errorf("%w: unknown sort field %q", pipeline.ErrInvalidPipeline, stage.Field)
			}
			desc := stage.Direction != pipeline.Asc
			q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: desc}).
				Order(clause.OrderByColumn{Column: clause.Column{Name: "o.id", Raw: true}, Desc: desc})
		case pipeline.Skip:
			q = q.Offset(stage.N)
		case pipeline.Limit:
			q = q.Limit(stage.N)
		}
	}
	return q, joined, nil
}

// load fetches the aggregates for ids and returns them in the same order.
func (s *Store) load(ctx context.Context, db *gorm.DB, ids []string, withBuyer bool) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return []*domain.Order{}, nil
	}
	var records []orderRecord
	if err := db.Where("id = ANY(?)", pq.Array(ids)).Find(&records).Error; err != nil {
		return nil, err
	}
	var items []orderItemRecord
	if err := db.Where("order_id = ANY(?)", pq.Array(ids)).Order("order_id, position").Find(&items).Error; err != nil {
		return nil, err
	}
	itemsByOrder := make(map[string][]orderItemRecord, len(ids))
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}

	buyers := map[string]*buyerRecord{}
	if withBuyer {
		buyerIDs := make([]string, 0, len(records))
		for _, rec := range records {
			buyerIDs = append(buyerIDs, rec.BuyerID)
		}
		var found []buyerRecord
		if err := db.Where("id = ANY(?)", pq.Array(buyerIDs)).Find(&found).Error; err != nil {
			return nil, err
		}
		for i := range found {
			buyers[found[i].ID] = &found[i]
		}
	}

	byID := make(map[string]orderRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			// deleted between the id scan and the load
			continue
		}
		orders = append(orders, rec.toDomain(itemsByOrder[id], buyers[rec.BuyerID]))
	}
	return orders, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	orders, err := s.load(ctx, s.db.WithContext(ctx), []string{id}, true)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ports.ErrNotFound
	}
	return orders[0], nil
}

// Save inserts the order when its version is zero and otherwise updates it only
// if the stored version still matches. Line items are rewritten on every save.
func (s *Store) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	record, items := toRecords(order)
	expected := record.Version
	record.Version = expected + 1
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expected == 0 {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ports.ErrConflict
			}
		} else {
			result := tx.Model(&record).
				Where("version = ?", expected).
				Select("*").
				Omit("id", "created_at").
				Updates(&record)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				var exists int64
				if err := tx.Model(&orderRecord{}).Where("id = ?", record.ID).Count(&exists).Error; err != nil {
					return err
				}
				if exists == 0 {
					return ports.ErrNotFound
				}
				return ports.ErrConflict
			}
			if err := tx.Where("order_id = ?", record.ID).Delete(&orderItemRecord{}).Error; err != nil {
				return err
			}
		}
		if len(items) > 0 {
			return tx.Create(&items).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, record.ID)
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&orderItemRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&orderRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ports.ErrNotFound
		}
		return nil
	})
}

// UpsertBuyer writes the buyer summary joined onto orders.
func (s *Store) UpsertBuyer(ctx context.Context, buyer domain.BuyerSummary) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	record := buyerRecord{ID: buyer.ID, Name: buyer.Name, Email: buyer.Email, Phone: buyer.Phone}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone"}),
		}).Create(&record).Error
}

func (s *Store) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres order store not configured")
	}
	return nil
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
