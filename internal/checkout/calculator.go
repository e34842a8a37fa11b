// Package checkout derives tax, shipping and the grand total from a cart
// subtotal.
package checkout

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Totals is the price breakdown shown at checkout.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Calculator holds the business rates. It has no state, so totals are
// always derived from the subtotal passed in.
type Calculator struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	Currency              currency.Unit
}

// Default is 18% tax, free shipping from 1000 and a flat fee of 50 below
// that, in Indian rupees.
func Default() Calculator {
	return Calculator{
		TaxRate:               decimal.RequireFromString("0.18"),
		FreeShippingThreshold: decimal.NewFromInt(1000),
		FlatShippingFee:       decimal.NewFromInt(50),
		Currency:              currency.INR,
	}
}

// Calculate returns the totals for subtotal, rounded to the currency's
// standard number of decimals.
func (c Calculator) Calculate(subtotal decimal.Decimal) Totals {
	scale, _ := currency.Standard.Rounding(c.Currency)
	places := int32(scale)

	tax := subtotal.Mul(c.TaxRate).Round(places)
	shipping := c.FlatShippingFee
	if subtotal.GreaterThanOrEqual(c.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal.Round(places),
		Tax:      tax,
		Shipping: shipping.Round(places),
		Total:    subtotal.Add(tax).Add(shipping).Round(places),
	}
}
