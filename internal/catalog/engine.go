// Package catalog filters and orders the product list shown in the
// storefront.
package catalog

import (
	"sort"

	"veggiemarket/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Result is the output of Apply. Loaded is always true for results produced
// by Apply, so an empty Products slice means "nothing matched" rather than
// "nothing fetched yet".
type Result struct {
	Products      []models.Product `json:"products"`
	ActiveFilters []string         `json:"active_filters"`
	Loaded        bool             `json:"loaded"`
}

// Engine applies filters and sorting. Name sorting follows the collation
// rules of its locale.
type Engine struct {
	locale language.Tag
}

// NewEngine creates an Engine for locale.
func NewEngine(locale language.Tag) *Engine {
	return &Engine{locale: locale}
}

// Apply returns the products matching f in the order selected by key. The
// input slice is left untouched.
func (e *Engine) Apply(products []models.Product, f Filters, key SortKey) Result {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	e.sort(out, key)

	labels := f.Labels()
	if labels == nil {
		labels = []string{}
	}
	return Result{Products: out, ActiveFilters: labels, Loaded: true}
}

func (e *Engine) sort(ps []models.Product, key SortKey) {
	switch key {
	case SortPriceAsc:
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Price.LessThan(ps[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Price.GreaterThan(ps[j].Price) })
	case SortNameAsc, SortNameDesc:
		// collate.Collator keeps internal buffers and must not be shared
		// between goroutines.
		col := collate.New(e.locale, collate.IgnoreCase)
		sign := 1
		if key == SortNameDesc {
			sign = -1
		}
		sort.SliceStable(ps, func(i, j int) bool {
			return sign*col.CompareString(ps[i].Name, ps[j].Name) < 0
		})
	}
}

// Facets summarizes a product set for filter controls.
type Facets struct {
	MinPrice   decimal.Decimal         `json:"min_price"`
	MaxPrice   decimal.Decimal         `json:"max_price"`
	Categories map[models.Category]int `json:"categories"`
	Organic    int                     `json:"organic"`
}

// FacetsFor computes the price range and per-category counts of products.
func FacetsFor(products []models.Product) Facets {
	f := Facets{Categories: make(map[models.Category]int)}
	for i, p := range products {
		if i == 0 || p.Price.LessThan(f.MinPrice) {
			f.MinPrice = p.Price
		}
		if i == 0 || p.Price.GreaterThan(f.MaxPrice) {
			f.MaxPrice = p.Price
		}
		if p.Category != nil {
			f.Categories[*p.Category]++
		}
		if p.IsOrganic() {
			f.Organic++
		}
	}
	return f
}
