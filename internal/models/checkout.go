package models

// CheckoutForm is what the customer submits to place an order. Card fields
// are only checked when PaymentMethod is credit_card.
type CheckoutForm struct {
	Email           string          `json:"email" validate:"required,email"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"required,oneof=credit_card cash_on_delivery upi"`
	CardNumber      string          `json:"card_number,omitempty"`
	CardExpiry      string          `json:"card_expiry,omitempty"`
	CardCVV         string          `json:"card_cvv,omitempty"`
}
