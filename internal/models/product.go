package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category is a product grouping shown in the storefront navigation.
type Category string

const (
	CategoryAll         Category = "all" // wildcard, only meaningful in filters
	CategoryVegetables  Category = "vegetables"
	CategoryFruits      Category = "fruits"
	CategoryLeafyGreens Category = "leafy-greens"
	CategoryHerbs       Category = "herbs"
	CategoryExotic      Category = "exotic"
	CategoryOrganic     Category = "organic"
)

// Categories lists every concrete category in display order.
var Categories = []Category{
	CategoryVegetables,
	CategoryFruits,
	CategoryLeafyGreens,
	CategoryHerbs,
	CategoryExotic,
	CategoryOrganic,
}

// Valid reports whether c is a concrete category or the wildcard.
func (c Category) Valid() bool {
	if c == CategoryAll {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Title returns the human-readable name, e.g. "Leafy Greens".
func (c Category) Title() string {
	words := strings.Split(string(c), "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Product represents a product in the store.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" gorm:"type:varchar(100);index" validate:"required,min=2,max=100"`
	Description *string         `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null" validate:"gte=0"`
	Stock       int             `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	Image       string          `json:"image" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	Category    *Category       `json:"category" gorm:"type:varchar(32);index" validate:"omitempty,category"`
	Organic     *bool           `json:"organic"`
	Unit        string          `json:"unit" gorm:"type:varchar(32)" validate:"omitempty,max=32"`
	Discount    *int            `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}

// IsOrganic treats a missing organic attribute as false.
func (p Product) IsOrganic() bool {
	return p.Organic != nil && *p.Organic
}

// InCategory reports whether the product belongs to c.
func (p Product) InCategory(c Category) bool {
	return p.Category != nil && *p.Category == c
}
