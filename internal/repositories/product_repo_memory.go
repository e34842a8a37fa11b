package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"veggiemarket/internal/catalog"
	"veggiemarket/internal/models"

	"github.com/google/uuid"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
// List returns products in insertion order.
type MemoryProductRepository struct {
	products map[string]models.Product
	order    []string
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository(seed ...models.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: make(map[string]models.Product)}
	for i := range seed {
		_ = r.Create(context.Background(), &seed[i])
	}
	return r
}

// List returns the products matching f.
func (r *MemoryProductRepository) List(_ context.Context, f catalog.Filters) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Product, 0, len(r.order))
	for _, id := range r.order {
		if p := r.products[id]; f.Match(p) {
			list = append(list, p)
		}
	}
	return list, nil
}

// GetByID returns a product by its ID.
func (r *MemoryProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	product.CreatedAt, product.UpdatedAt = now, now
	if _, exists := r.products[product.ID]; !exists {
		r.order = append(r.order, product.ID)
	}
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MemoryProductRepository) Update(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MemoryProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	delete(r.products, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// reserve decrements stock for every item, or for none if any is short.
func (r *MemoryProductRepository) reserve(items []models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range items {
		p, ok := r.products[it.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", it.ProductID, ErrNotFound)
		}
		if p.Stock < it.Quantity {
			return fmt.Errorf("%s: %w", p.Name, ErrInsufficientStock)
		}
	}
	for _, it := range items {
		p := r.products[it.ProductID]
		p.Stock -= it.Quantity
		r.products[it.ProductID] = p
	}
	return nil
}
