package repositories

import (
	"context"

	"veggiemarket/internal/models"
)

// OrderRepository defines the interface for order data access.
// Create reserves stock for every item in the same unit of work and fails
// with ErrInsufficientStock without writing anything when any item is short.
// TransitionStatus moves an order to status only while it is still in one of
// from, and fails with ErrStatusChanged otherwise.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	TransitionStatus(ctx context.Context, id string, from []models.OrderStatus, status models.OrderStatus) error
}
