package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"veggiemarket/internal/models"

	"github.com/shopspring/decimal"
)

// SortKey selects the display order.
type SortKey string

const (
	SortRecommended SortKey = "recommended"
	SortPriceAsc    SortKey = "price-asc"
	SortPriceDesc   SortKey = "price-desc"
	SortNameAsc     SortKey = "name-asc"
	SortNameDesc    SortKey = "name-desc"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortRecommended, SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return true
	}
	return false
}

// Filters narrows the product list. The zero value matches everything.
type Filters struct {
	Query       string
	Category    models.Category
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	OrganicOnly bool
}

// Query string parameter names.
const (
	ParamQuery    = "q"
	ParamCategory = "category"
	ParamMinPrice = "min_price"
	ParamMaxPrice = "max_price"
	ParamOrganic  = "organic"
	ParamSort     = "sort"
)

// Match reports whether p passes every filter.
func (f Filters) Match(p models.Product) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		inName := strings.Contains(strings.ToLower(p.Name), q)
		inDesc := p.Description != nil && strings.Contains(strings.ToLower(*p.Description), q)
		if !inName && !inDesc {
			return false
		}
	}
	if f.Category != "" && f.Category != models.CategoryAll && !p.InCategory(f.Category) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.OrganicOnly && !p.IsOrganic() {
		return false
	}
	return true
}

// Labels describes the active filters for display, in a fixed order.
func (f Filters) Labels() []string {
	var labels []string
	if q := strings.TrimSpace(f.Query); q != "" {
		labels = append(labels, fmt.Sprintf("Search: %q", q))
	}
	if f.Category != "" && f.Category != models.CategoryAll {
		labels = append(labels, "Category: "+f.Category.Title())
	}
	if f.MinPrice != nil {
		labels = append(labels, "Min: "+f.MinPrice.StringFixed(2))
	}
	if f.MaxPrice != nil {
		labels = append(labels, "Max: "+f.MaxPrice.StringFixed(2))
	}
	if f.OrganicOnly {
		labels = append(labels, "Organic only")
	}
	return labels
}

// ParseQuery reads filters and the sort key from query string parameters,
// as returned by fiber.Ctx.Queries.
func ParseQuery(params map[string]string) (Filters, SortKey, error) {
	var f Filters
	f.Query = strings.TrimSpace(params[ParamQuery])

	if c := params[ParamCategory]; c != "" {
		f.Category = models.Category(strings.ToLower(c))
		if !f.Category.Valid() {
			return Filters{}, "", fmt.Errorf("unknown category %q", c)
		}
	}

	var err error
	if f.MinPrice, err = parsePrice(params[ParamMinPrice]); err != nil {
		return Filters{}, "", fmt.Errorf("invalid %s: %w", ParamMinPrice, err)
	}
	if f.MaxPrice, err = parsePrice(params[ParamMaxPrice]); err != nil {
		return Filters{}, "", fmt.Errorf("invalid %s: %w", ParamMaxPrice, err)
	}

	if o := params[ParamOrganic]; o != "" {
		if f.OrganicOnly, err = strconv.ParseBool(o); err != nil {
			return Filters{}, "", fmt.Errorf("invalid %s: %w", ParamOrganic, err)
		}
	}

	sort := SortRecommended
	if s := params[ParamSort]; s != "" {
		sort = SortKey(s)
		if !sort.Valid() {
			return Filters{}, "", fmt.Errorf("unknown sort %q", s)
		}
	}
	return f, sort, nil
}

func parsePrice(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("price must not be negative")
	}
	return &d, nil
}

// Encode renders f and sort as a shareable query string. Default values are
// left out.
func Encode(f Filters, sort SortKey) string {
	v := url.Values{}
	if q := strings.TrimSpace(f.Query); q != "" {
		v.Set(ParamQuery, q)
	}
	if f.Category != "" && f.Category != models.CategoryAll {
		v.Set(ParamCategory, string(f.Category))
	}
	if f.MinPrice != nil {
		v.Set(ParamMinPrice, f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		v.Set(ParamMaxPrice, f.MaxPrice.String())
	}
	if f.OrganicOnly {
		v.Set(ParamOrganic, "true")
	}
	if sort != "" && sort != SortRecommended {
		v.Set(ParamSort, string(sort))
	}
	return v.Encode()
}
