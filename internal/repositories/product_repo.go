package repositories

import (
	"context"
	"errors"

	"veggiemarket/internal/catalog"
	"veggiemarket/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned when an order asks for more than is in stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrStatusChanged is returned when an order is no longer in the expected status.
	ErrStatusChanged = errors.New("order status changed")
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, f catalog.Filters) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
