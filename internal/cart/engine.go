// Package cart keeps a quantity-keyed list of products for one storage
// partition and persists every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"veggiemarket/internal/models"
	"veggiemarket/internal/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

// GuestPartition is the partition key used while nobody is signed in.
const GuestPartition = "cart_guest"

var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// PartitionKey returns the storage key of the cart owned by userID, or the
// guest partition when userID is empty.
func PartitionKey(userID string) string {
	if userID == "" {
		return GuestPartition
	}
	return "cart_" + userID
}

// Engine is the cart of one partition. All mutations are serialized, so
// concurrent Add calls never lose an update.
type Engine struct {
	mu    sync.Mutex
	store storage.KeyValue
	key   string
	items []models.CartItem
}

// Open loads the cart stored under key, or starts empty when nothing is
// stored there.
func Open(ctx context.Context, store storage.KeyValue, key string) (*Engine, error) {
	items, err := load(ctx, store, key)
	if err != nil {
		return nil, err
	}
	return &Engine{store: store, key: key, items: items}, nil
}

func load(ctx context.Context, store storage.KeyValue, key string) ([]models.CartItem, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", key, err)
	}
	var items []models.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", key, err)
	}
	return items, nil
}

// Key returns the active partition key.
func (e *Engine) Key() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key
}

// Items returns a copy of the cart in insertion order.
func (e *Engine) Items() []models.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.CartItem(nil), e.items...)
}

// Add increments the quantity of p by qty, appending a new entry when p is
// not in the cart yet.
func (e *Engine) Add(ctx context.Context, p models.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := append([]models.CartItem(nil), e.items...)
	if i := indexOf(next, p.ID); i >= 0 {
		next[i].Quantity += qty
	} else {
		next = append(next, models.CartItem{Product: p, Quantity: qty})
	}
	return e.commit(ctx, next)
}

// SetQuantity replaces the stored quantity. A quantity of zero or less removes
// the product.
func (e *Engine) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return e.Remove(ctx, productID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOf(e.items, productID)
	if i < 0 {
		return nil
	}
	next := append([]models.CartItem(nil), e.items...)
	next[i].Quantity = qty
	return e.commit(ctx, next)
}

// Remove deletes the product's entry. Absent products are ignored.
func (e *Engine) Remove(ctx context.Context, productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOf(e.items, productID)
	if i < 0 {
		return nil
	}
	next := make([]models.CartItem, 0, len(e.items)-1)
	next = append(next, e.items[:i]...)
	next = append(next, e.items[i+1:]...)
	return e.commit(ctx, next)
}

// Clear empties the cart and removes its stored key.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commit(ctx, nil)
}

// Checkout hands the current items to fn while holding the cart, and empties
// the cart only when fn succeeds. Mutations issued meanwhile wait for it, so
// they are neither lost nor ordered twice. fn must not call back into e.
func (e *Engine) Checkout(ctx context.Context, fn func(items []models.CartItem) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(append([]models.CartItem(nil), e.items...)); err != nil {
		return err
	}
	return e.commit(ctx, nil)
}

// TotalItems is the sum of all quantities.
func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, it := range e.items {
		n += it.Quantity
	}
	return n
}

// Subtotal is the sum of price × quantity over all entries.
func (e *Engine) Subtotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	sum := decimal.Zero
	for _, it := range e.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// SwitchPartition drops the in-memory cart and loads the one stored under
// key. Nothing is carried over from the previous partition.
func (e *Engine) SwitchPartition(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := load(ctx, e.store, key)
	if err != nil {
		return err
	}
	e.key = key
	e.items = items
	return nil
}

// RefreshProducts replaces the product of every entry with what refresh
// returns for it. Entries for which refresh reports false are dropped. The
// cart is only written back when some product field changed.
func (e *Engine) RefreshProducts(ctx context.Context, refresh func(current models.Product) (models.Product, bool)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	next := make([]models.CartItem, 0, len(e.items))
	for _, it := range e.items {
		p, ok := refresh(it.Product)
		if !ok {
			changed = true
			continue
		}
		if !cmp.Equal(p, it.Product) {
			changed = true
		}
		next = append(next, models.CartItem{Product: p, Quantity: it.Quantity})
	}
	if !changed {
		return nil
	}
	return e.commit(ctx, next)
}

// commit persists next and only then makes it the current state.
func (e *Engine) commit(ctx context.Context, next []models.CartItem) error {
	if len(next) == 0 {
		if err := e.store.Delete(ctx, e.key); err != nil {
			return fmt.Errorf("failed to clear cart %s: %w", e.key, err)
		}
		e.items = nil
		return nil
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", e.key, err)
	}
	if err := e.store.Set(ctx, e.key, raw); err != nil {
		return fmt.Errorf("failed to save cart %s: %w", e.key, err)
	}
	e.items = next
	return nil
}

func indexOf(items []models.CartItem, productID string) int {
	for i, it := range items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}
