package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Apurer/go-order-admin/internal/domains/orders/ports"
)

var _ ports.Inventory = (*Inventory)(nil)

// Inventory keeps product stock levels in memory.
type Inventory struct {
	mu       sync.Mutex
	stock    map[string]int
	failures map[string]error
	calls    int
}

func NewInventory() *Inventory {
	return &Inventory{stock: map[string]int{}, failures: map[string]error{}}
}

// SetStock registers a product with the given stock level.
func (i *Inventory) SetStock(productID string, stock int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stock[productID] = stock
}

// Stock returns the current stock level of a product.
func (i *Inventory) Stock(productID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stock[productID]
}

// FailOn makes every increment of productID fail with err until cleared with a nil err.
func (i *Inventory) FailOn(productID string, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err == nil {
		delete(i.failures, productID)
		return
	}
	i.failures[productID] = err
}

// Calls returns how many increments were attempted.
func (i *Inventory) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

func (i *Inventory) IncrementStock(_ context.Context, productID string, amount int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	if err := i.failures[productID]; err != nil {
		return err
	}
	if _, ok := i.stock[productID]; !ok {
		return fmt.Errorf("%w: %s", ports.ErrProductNotFound, productID)
	}
	i.stock[productID] += amount
	return nil
}
