package catalog

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type SortField string

const (
	SortRelevance SortField = "" // keep catalog order
	SortPrice     SortField = "price"
	SortRating    SortField = "rating"
	SortNewest    SortField = "newest"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Filter is the query over a catalog snapshot. Zero-valued fields do not
// filter. SortOrder defaults to ascending.
type Filter struct {
	Search    string
	Category  string
	SellerID  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	SortBy    SortField
	SortOrder SortOrder
}

func (f Filter) Validate() error {
	const op = "catalog.Filter"
	switch f.SortBy {
	case SortRelevance, SortPrice, SortRating, SortNewest:
	default:
		return apperr.Invalid(op, "unknown sort field %q", f.SortBy)
	}
	switch f.SortOrder {
	case "", Asc, Desc:
	default:
		return apperr.Invalid(op, "unknown sort order %q", f.SortOrder)
	}
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return apperr.Invalid(op, "min price must not be negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return apperr.Invalid(op, "max price must not be negative")
	}
	return nil
}

// ParseFilter reads a filter from query parameters (search, category,
// seller_id, min_price, max_price, sort_by, sort_order) and validates it.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		SellerID:  q.Get("seller_id"),
		SortBy:    SortField(strings.ToLower(q.Get("sort_by"))),
		SortOrder: SortOrder(strings.ToLower(q.Get("sort_order"))),
	}
	for key, dst := range map[string]**decimal.Decimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Filter{}, apperr.Invalid("catalog.ParseFilter", "%s: %q is not a number", key, raw)
		}
		*dst = &d
	}
	return f, f.Validate()
}

// Query filters and sorts a catalog snapshot. The input is never modified;
// the result is always a fresh slice.
func Query(products []Product, f Filter) []Product {
	fold := cases.Fold()
	search := fold.String(f.Search)
	category := fold.String(f.Category)

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if search != "" &&
			!strings.Contains(fold.String(p.Name), search) &&
			!strings.Contains(fold.String(p.Description), search) {
			continue
		}
		if category != "" && fold.String(p.Category) != category {
			continue
		}
		if f.SellerID != "" && p.SellerID != f.SellerID {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}

	var compare func(a, b Product) int
	switch f.SortBy {
	case SortPrice:
		compare = func(a, b Product) int { return a.Price.Cmp(b.Price) }
	case SortRating:
		compare = func(a, b Product) int { return cmp.Compare(a.Rating, b.Rating) }
	case SortNewest:
		compare = func(a, b Product) int { return cmp.Compare(a.ID, b.ID) }
	default:
		return out
	}
	if f.SortOrder == Desc {
		asc := compare
		compare = func(a, b Product) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}
