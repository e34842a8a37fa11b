package services

import (
	"context"
	"fmt"

	"veggiemarket/internal/catalog"
	"veggiemarket/internal/logger"
	"veggiemarket/internal/models"
	"veggiemarket/internal/realtime"
	"veggiemarket/internal/repositories"

	"go.uber.org/zap"
)

// ChangePublisher emits row changes. realtime.Broker satisfies it.
type ChangePublisher interface {
	Publish(ctx context.Context, c realtime.Change) error
}

// Listing is one page of the storefront: the filtered products plus facets
// over the whole catalog.
type Listing struct {
	catalog.Result
	Query  string         `json:"query"`
	Facets catalog.Facets `json:"facets"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo    repositories.ProductRepository
	cache   *catalog.Cache
	engine  *catalog.Engine
	changes ChangePublisher
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, cache *catalog.Cache, engine *catalog.Engine, changes ChangePublisher) *ProductService {
	return &ProductService{
		repo:    repo,
		cache:   cache,
		engine:  engine,
		changes: changes,
	}
}

// LoadCatalog fills the cache from the repository.
func (s *ProductService) LoadCatalog(ctx context.Context) error {
	return s.cache.Load(ctx, s.repo)
}

// Browse filters and sorts the cached catalog. The cache is loaded on first
// use; while it cannot be loaded the listing reports Loaded false.
func (s *ProductService) Browse(ctx context.Context, f catalog.Filters, sort catalog.SortKey) (Listing, error) {
	if !s.cache.Loaded() {
		if err := s.LoadCatalog(ctx); err != nil {
			logger.FromCtx(ctx).Warn("catalog not loaded", zap.Error(err))
			return Listing{Result: catalog.Result{Products: []models.Product{}, ActiveFilters: f.Labels()}}, fmt.Errorf("%w: %v", ErrCatalogNotLoaded, err)
		}
	}
	products, _ := s.cache.Snapshot()
	return Listing{
		Result: s.engine.Apply(products, f, sort),
		Query:  catalog.Encode(f, sort),
		Facets: catalog.FacetsFor(products),
	}, nil
}

// GetProductByID retrieves a single product, preferring the cache.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	if p, ok := s.cache.Get(id); ok {
		return &p, nil
	}
	return s.repo.GetByID(ctx, id)
}

// CreateProduct creates a new product and announces it.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.repo.Create(ctx, product); err != nil {
		return err
	}
	s.publish(ctx, realtime.OpInsert, product.ID, product)
	return nil
}

// UpdateProduct updates an existing product and announces it.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := s.repo.Update(ctx, product); err != nil {
		return err
	}
	s.publish(ctx, realtime.OpUpdate, product.ID, product)
	return nil
}

// DeleteProduct deletes a product by its ID and announces it.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, realtime.OpDelete, id, nil)
	return nil
}

// RefreshProduct re-reads a product and announces its current state.
func (s *ProductService) RefreshProduct(ctx context.Context, id string) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to refresh product", zap.String("product_id", id), zap.Error(err))
		return
	}
	s.publish(ctx, realtime.OpUpdate, id, p)
}

// publish failures are logged; the row change itself already happened.
func (s *ProductService) publish(ctx context.Context, op realtime.Op, id string, record any) {
	if s.changes == nil {
		return
	}
	change, err := realtime.NewChange(realtime.TableProducts, op, id, record)
	if err == nil {
		err = s.changes.Publish(ctx, change)
	}
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to publish product change",
			zap.String("product_id", id), zap.String("op", string(op)), zap.Error(err))
	}
}
