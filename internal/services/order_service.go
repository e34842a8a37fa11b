package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"veggiemarket/internal/cart"
	"veggiemarket/internal/checkout"
	"veggiemarket/internal/logger"
	"veggiemarket/internal/models"
	"veggiemarket/internal/realtime"
	"veggiemarket/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderEventPublisher sends order lifecycle events to other services.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, body []byte) error
}

// OrderCreatedEvent is the body of an order.created message.
type OrderCreatedEvent struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Status  string          `json:"status"`
	Total   decimal.Decimal `json:"total"`
	Items   int             `json:"items"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	products    *ProductService
	calculator  checkout.Calculator
	changes     ChangePublisher
	events      OrderEventPublisher
	validate    *validator.Validate
}

// NewOrderService creates a new OrderService. products may be nil, in which
// case stock changes are not announced. events may be nil.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	products *ProductService,
	calculator checkout.Calculator,
	changes ChangePublisher,
	events OrderEventPublisher,
	validate *validator.Validate,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		products:    products,
		calculator:  calculator,
		changes:     changes,
		events:      events,
		validate:    validate,
	}
}

// Quote prices the cart as it stands.
func (s *OrderService) Quote(c *cart.Engine) checkout.Totals {
	return s.calculator.Calculate(c.Subtotal())
}

// PlaceOrder turns the cart into an order at current catalog prices. On
// success the cart is cleared.
func (s *OrderService) PlaceOrder(ctx context.Context, user models.Identity, c *cart.Engine, form models.CheckoutForm) (*models.Order, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, err
	}

	// The cart stays locked until the order is written, so a concurrent
	// submit finds it empty and items added meanwhile stay in the cart.
	var order *models.Order
	err := c.Checkout(ctx, func(items []models.CartItem) error {
		if len(items) == 0 {
			return ErrEmptyCart
		}
		placed, err := s.createOrder(ctx, user, items, form)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil && order == nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(zap.String("order_id", order.ID))
	if err != nil {
		log.Warn("order placed but cart not cleared", zap.Error(err))
	}

	s.publishOrder(ctx, realtime.OpInsert, order)
	if s.products != nil {
		for _, it := range order.Items {
			s.products.RefreshProduct(ctx, it.ProductID)
		}
	}
	s.publishCreated(ctx, order)
	log.Info("order placed", zap.String("user_id", user.ID), zap.String("total", order.Total.StringFixed(2)))
	return order, nil
}

// createOrder prices items at current repository prices and writes the order.
func (s *OrderService) createOrder(ctx context.Context, user models.Identity, items []models.CartItem, form models.CheckoutForm) (*models.Order, error) {
	orderItems := make([]models.OrderItem, 0, len(items))
	subtotal := decimal.Zero
	for _, it := range items {
		product, err := s.productRepo.GetByID(ctx, it.Product.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", it.Product.Name, ErrUnknownProduct)
			}
			return nil, err
		}
		if product.Stock < it.Quantity {
			return nil, fmt.Errorf("%s (requested: %d, available: %d): %w", product.Name, it.Quantity, product.Stock, ErrInsufficientStock)
		}
		line := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    it.Quantity,
			Price:       product.Price,
		}
		orderItems = append(orderItems, line)
		subtotal = subtotal.Add(line.LineTotal())
	}

	totals := s.calculator.Calculate(subtotal)
	order := &models.Order{
		UserID:          user.ID,
		Items:           orderItems,
		ShippingAddress: form.ShippingAddress,
		PaymentMethod:   form.PaymentMethod,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Status:          models.OrderPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

// ListForUser returns the orders placed by userID.
func (s *OrderService) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

// GetForUser returns an order if user may see it. Another customer's order
// is reported as not found.
func (s *OrderService) GetForUser(ctx context.Context, user models.Identity, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID && !user.IsAdmin {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return order, nil
}

// Cancel cancels a pending or processing order owned by user.
func (s *OrderService) Cancel(ctx context.Context, user models.Identity, id string) (*models.Order, error) {
	order, err := s.GetForUser(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("order %s is %s: %w", id, order.Status, ErrInvalidTransition)
	}
	// The status may have moved on since it was read.
	err = s.orderRepo.TransitionStatus(ctx, order.ID, models.CancellableStatuses, models.OrderCancelled)
	switch {
	case errors.Is(err, repositories.ErrStatusChanged):
		return nil, fmt.Errorf("order %s: %w", id, ErrInvalidTransition)
	case err != nil:
		return nil, fmt.Errorf("failed to cancel order %s: %w", id, err)
	}
	order.Status = models.OrderCancelled
	s.publishOrder(ctx, realtime.OpUpdate, order)
	return order, nil
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// UpdateOrderStatus sets any known status on an order.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status string) (*models.Order, error) {
	next := models.OrderStatus(status)
	if !next.Valid() {
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, order, next)
}

func (s *OrderService) setStatus(ctx context.Context, order *models.Order, status models.OrderStatus) (*models.Order, error) {
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", order.ID, err)
	}
	order.Status = status
	s.publishOrder(ctx, realtime.OpUpdate, order)
	return order, nil
}

func (s *OrderService) publishOrder(ctx context.Context, op realtime.Op, order *models.Order) {
	if s.changes == nil {
		return
	}
	change, err := realtime.NewChange(realtime.TableOrders, op, order.ID, order)
	if err == nil {
		err = s.changes.Publish(ctx, change)
	}
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order change", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(OrderCreatedEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  string(order.Status),
		Total:   order.Total,
		Items:   len(order.Items),
	})
	if err == nil {
		err = s.events.PublishOrderCreated(ctx, body)
	}
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order created event", zap.String("order_id", order.ID), zap.Error(err))
	}
}
