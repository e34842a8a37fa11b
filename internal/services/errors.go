package services

import (
	"errors"

	"veggiemarket/internal/repositories"
)

var (
	ErrNotFound          = repositories.ErrNotFound
	ErrInsufficientStock = repositories.ErrInsufficientStock

	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnknownProduct    = errors.New("product is no longer available")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order can no longer be cancelled")
	ErrCatalogNotLoaded  = errors.New("catalog not loaded")
)
