package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"veggiemarket/internal/models"
	"veggiemarket/internal/realtime"
)

// Lister loads the full product set.
type Lister interface {
	List(ctx context.Context, f Filters) ([]models.Product, error)
}

// Cache mirrors the products table in memory and keeps itself current from
// the products change feed, one row at a time.
type Cache struct {
	mu       sync.RWMutex
	products []models.Product
	loaded   bool
}

// NewCache creates an empty, not yet loaded cache.
func NewCache() *Cache {
	return &Cache{}
}

// Load replaces the cached set with everything src returns.
func (c *Cache) Load(ctx context.Context, src Lister) error {
	products, err := src.List(ctx, Filters{})
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.loaded = true
	return nil
}

// Loaded reports whether Load has succeeded at least once.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Snapshot returns a copy of the cached products and whether the cache is
// loaded.
func (c *Cache) Snapshot() ([]models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Product(nil), c.products...), c.loaded
}

// Get looks up one product by id.
func (c *Cache) Get(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// HandleChange applies a products change. Inserts are appended, updates
// replace the row in place and deletes remove it.
func (c *Cache) HandleChange(_ context.Context, ch realtime.Change) error {
	if ch.Table != realtime.TableProducts {
		return nil
	}

	var p models.Product
	if ch.Op != realtime.OpDelete {
		if err := json.Unmarshal(ch.Record, &p); err != nil {
			return fmt.Errorf("failed to decode product %s: %w", ch.ID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.products {
		if c.products[i].ID == ch.ID {
			idx = i
			break
		}
	}

	switch {
	case ch.Op == realtime.OpDelete:
		if idx >= 0 {
			c.products = append(c.products[:idx:idx], c.products[idx+1:]...)
		}
	case idx >= 0:
		c.products[idx] = p
	default:
		c.products = append(c.products, p)
	}
	return nil
}
