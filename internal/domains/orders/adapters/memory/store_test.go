package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-admin/internal/domains/orders/domain"
	"github.com/Apurer/go-order-admin/internal/domains/orders/pipeline"
	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var base = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func seedStore(t *testing.T, n int) *Store {
	t.Helper()
	store := NewStore()
	store.PutBuyer(domain.BuyerSummary{ID: "b-ada", Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 100"})
	store.PutBuyer(domain.BuyerSummary{ID: "b-alan", Name: "Alan Turing", Email: "alan@example.com", Phone: "+44 200"})
	for i := 0; i < n; i++ {
		buyer := "b-ada"
		if i%2 == 1 {
			buyer = "b-alan"
		}
		order, err := domain.NewOrder(fmt.Sprintf("ord-%02d", i), buyer, []domain.LineItem{
			{ProductID: "p-1", Quantity: i + 1, UnitPrice: decimal.NewFromInt(10)},
		}, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		if i%3 == 0 {
			_, err = order.TransitionTo(domain.StatusShipped, "", base)
			require.NoError(t, err)
		}
		_, err = store.Save(context.Background(), order)
		require.NoError(t, err)
	}
	return store
}

func TestStore_SaveVersioning(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	order, err := domain.NewOrder("ord-1", "b-1", nil, base)
	require.NoError(t, err)

	saved, err := store.Save(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	_, err = store.Save(ctx, order)
	require.ErrorIs(t, err, ports.ErrConflict)

	saved.Status = domain.StatusConfirmed
	updated, err := store.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = store.Save(ctx, saved)
	require.ErrorIs(t, err, ports.ErrConflict)
}

func TestStore_FindAndDelete(t *testing.T) {
	store := seedStore(t, 2)
	ctx := context.Background()

	order, err := store.FindByID(ctx, "ord-01")
	require.NoError(t, err)
	require.NotNil(t, order.Buyer)
	assert.Equal(t, "Alan Turing", order.Buyer.Name)

	require.NoError(t, store.DeleteByID(ctx, "ord-01"))
	_, err = store.FindByID(ctx, "ord-01")
	require.ErrorIs(t, err, ports.ErrNotFound)
	require.ErrorIs(t, store.DeleteByID(ctx, "ord-01"), ports.ErrNotFound)
}

func TestStore_PageAndCountAgree(t *testing.T) {
	store := seedStore(t, 25)
	ctx := context.Background()

	plan := pipeline.Build(pipeline.QuerySpec{Page: 2, Limit: 10, SortField: pipeline.SortCreatedAt, SortDirection: pipeline.Asc})
	items, err := store.ExecuteQuery(ctx, plan.Page())
	require.NoError(t, err)
	total, err := store.ExecuteCount(ctx, plan.Count())
	require.NoError(t, err)

	assert.Equal(t, int64(25), total)
	require.Len(t, items, 10)
	assert.Equal(t, "ord-10", items[0].ID)
	assert.Equal(t, "ord-19", items[9].ID)
	require.NotNil(t, items[0].Buyer)
}

func TestStore_SearchAcrossBuyerFields(t *testing.T) {
	store := seedStore(t, 6)
	ctx := context.Background()

	for term, want := range map[string]int64{
		"ALAN@":    3,
		"lovelace": 3,
		"+44 200":  3,
		"ord-05":   1,
		"nobody":   0,
	} {
		plan := pipeline.Build(pipeline.QuerySpec{Page: 1, Limit: 10, Search: term})
		total, err := store.ExecuteCount(ctx, plan.Count())
		require.NoError(t, err)
		assert.Equal(t, want, total, term)

		items, err := store.ExecuteQuery(ctx, plan.Page())
		require.NoError(t, err)
		assert.Len(t, items, int(want), term)
	}
}

func TestStore_FieldFilters(t *testing.T) {
	store := seedStore(t, 9)
	ctx := context.Background()

	shipped := domain.StatusShipped
	from := base.Add(2 * time.Hour)
	to := base.Add(6 * time.Hour)
	plan := pipeline.Build(pipeline.QuerySpec{Page: 1, Limit: 10, Status: &shipped, From: &from, To: &to})

	items, err := store.ExecuteQuery(ctx, plan.Page())
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, o := range items {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"ord-06", "ord-03"}, ids)
}

func TestStore_SortByTotalPrice(t *testing.T) {
	store := seedStore(t, 4)
	plan := pipeline.Build(pipeline.QuerySpec{Page: 1, Limit: 2, SortField: pipeline.SortTotalPrice, SortDirection: pipeline.Desc})
	items, err := store.ExecuteQuery(context.Background(), plan.Page())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ord-03", items[0].ID)
	assert.Equal(t, "ord-02", items[1].ID)
}

func TestStore_Aggregate(t *testing.T) {
	store := seedStore(t, 30)
	ctx := context.Background()

	byStatus, err := store.ExecuteAggregate(ctx, pipeline.Aggregate(pipeline.FilterByFields{}, pipeline.Group{By: pipeline.GroupStatus}))
	require.NoError(t, err)
	counts := map[domain.Status]int64{}
	for _, row := range byStatus {
		counts[row.Status] = row.Count
	}
	assert.Equal(t, int64(10), counts[domain.StatusShipped])
	assert.Equal(t, int64(20), counts[domain.StatusPending])

	byDay, err := store.ExecuteAggregate(ctx, pipeline.Aggregate(pipeline.FilterByFields{}, pipeline.Group{By: pipeline.GroupDay, Location: time.UTC}))
	require.NoError(t, err)
	require.Len(t, byDay, 2)
	assert.True(t, byDay[0].Day.Before(byDay[1].Day))
	assert.Equal(t, int64(15), byDay[0].Count)
	assert.Equal(t, int64(15), byDay[1].Count)

	total, err := store.ExecuteAggregate(ctx, pipeline.Aggregate(pipeline.FilterByFields{}, pipeline.Group{By: pipeline.GroupNone}))
	require.NoError(t, err)
	require.Len(t, total, 1)
	// sum of 10*(1..30)
	assert.True(t, decimal.NewFromInt(4650).Equal(total[0].Total))
}

func TestStore_RejectsMisusedPipelines(t *testing.T) {
	store := seedStore(t, 1)
	ctx := context.Background()

	_, err := store.ExecuteQuery(ctx, pipeline.Pipeline{pipeline.Count{}})
	require.ErrorIs(t, err, pipeline.ErrInvalidPipeline)
	_, err = store.ExecuteCount(ctx, pipeline.Pipeline{pipeline.JoinBuyer{}})
	require.ErrorIs(t, err, pipeline.ErrInvalidPipeline)
	_, err = store.ExecuteAggregate(ctx, pipeline.Pipeline{pipeline.Count{}})
	require.ErrorIs(t, err, pipeline.ErrInvalidPipeline)
	_, err = store.ExecuteQuery(ctx, pipeline.Pipeline{pipeline.FilterBySearch{Term: "a"}})
	require.ErrorIs(t, err, pipeline.ErrInvalidPipeline)
}

func TestInventory(t *testing.T) {
	inv := NewInventory()
	inv.SetStock("p-1", 5)
	ctx := context.Background()

	require.NoError(t, inv.IncrementStock(ctx, "p-1", 3))
	assert.Equal(t, 8, inv.Stock("p-1"))
	require.ErrorIs(t, inv.IncrementStock(ctx, "p-x", 1), ports.ErrProductNotFound)

	boom := fmt.Errorf("warehouse offline")
	inv.FailOn("p-1", boom)
	require.ErrorIs(t, inv.IncrementStock(ctx, "p-1", 1), boom)
	inv.FailOn("p-1", nil)
	require.NoError(t, inv.IncrementStock(ctx, "p-1", 1))
	assert.Equal(t, 9, inv.Stock("p-1"))
	assert.Equal(t, 4, inv.Calls())
}
