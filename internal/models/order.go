package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CancellableStatuses are the states a customer may still cancel from.
var CancellableStatuses = []OrderStatus{OrderPending, OrderProcessing}

// Cancellable reports whether a customer may still cancel an order in this state.
func (s OrderStatus) Cancellable() bool {
	return slices.Contains(CancellableStatuses, s)
}

// PaymentMethod is how the customer pays at checkout.
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentUPI            PaymentMethod = "upi"
)

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	FullName string `json:"full_name" gorm:"type:varchar(100)" validate:"required,min=2,max=100"`
	Address  string `json:"address" gorm:"type:varchar(255)" validate:"required,max=255"`
	City     string `json:"city" gorm:"type:varchar(100)" validate:"required,max=100"`
	State    string `json:"state" gorm:"type:varchar(100)" validate:"required,max=100"`
	ZipCode  string `json:"zip_code" gorm:"type:varchar(10)" validate:"required,numeric,len=6"`
	Phone    string `json:"phone" gorm:"type:varchar(20)" validate:"required,min=10,max=15"`
}

// OrderItem represents a single item within an order.
type OrderItem struct {
	ID          uint            `json:"-" gorm:"primaryKey"`
	OrderID     string          `json:"-" gorm:"type:varchar(36);index"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36)"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100)"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"` // Price at the time of order
}

// LineTotal is price × quantity for the item.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string          `json:"user_id" gorm:"type:varchar(36);index"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"type:varchar(32)"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2)"`
	Tax             decimal.Decimal `json:"tax" gorm:"type:numeric(12,2)"`
	Shipping        decimal.Decimal `json:"shipping" gorm:"type:numeric(12,2)"`
	Total           decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(16);index"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
