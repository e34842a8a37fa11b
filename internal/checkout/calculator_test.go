package checkout_test

import (
	"testing"

	"veggiemarket/internal/checkout"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/currency"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculator_Calculate(t *testing.T) {
	calc := checkout.Default()

	tests := []struct {
		name     string
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{"below threshold pays flat fee", "999", "179.82", "50", "1228.82"},
		{"threshold reached ships free", "1000", "180", "0", "1180"},
		{"empty cart", "0", "0", "50", "50"},
		{"rounds to paise", "10.05", "1.81", "50", "61.86"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(d(tt.subtotal))
			assert.True(t, d(tt.tax).Equal(got.Tax), "tax: got %s", got.Tax)
			assert.True(t, d(tt.shipping).Equal(got.Shipping), "shipping: got %s", got.Shipping)
			assert.True(t, d(tt.total).Equal(got.Total), "total: got %s", got.Total)
		})
	}
}

func TestCalculator_TracksSubtotal(t *testing.T) {
	calc := checkout.Default()
	first := calc.Calculate(d("200"))
	second := calc.Calculate(d("1200"))

	assert.True(t, d("286").Equal(first.Total))
	assert.True(t, d("1416").Equal(second.Total))
}

func TestCalculator_ZeroDecimalCurrency(t *testing.T) {
	calc := checkout.Default()
	calc.Currency = currency.JPY
	got := calc.Calculate(d("999"))
	assert.True(t, d("180").Equal(got.Tax))
}
