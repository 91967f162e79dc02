package catalog

import (
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ids(ps []Product) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

var sample = []Product{
	{ID: 1, Name: "Wireless Headphones", Description: "Noise cancelling", Price: decimal.RequireFromString("199.99"), Category: "Electronics", Rating: 4.5},
	{ID: 2, Name: "Art of Programming", Description: "A book about CODE", Price: decimal.RequireFromString("49.99"), Category: "Books", Rating: 4.5, SellerID: "s1"},
	{ID: 3, Name: "Running Shoes", Description: "Light and fast", Price: decimal.RequireFromString("129.99"), Category: "Shoes", Rating: 4.8, SellerID: "s1"},
	{ID: 4, Name: "Yoga Mat", Description: "Wireless-free exercise", Price: decimal.RequireFromString("39.99"), Category: "Sports", Rating: 4.4},
	{ID: 5, Name: "Air Fryer", Description: "Kitchen", Price: decimal.RequireFromString("129.99"), Category: "Home & Kitchen", Rating: 4.7},
}

func TestQuery_EmptyFilterReturnsCopyOfCatalog(t *testing.T) {
	got := Query(sample, Filter{})
	assert.Equal(t, sample, got)

	got[0].Name = "changed"
	assert.Equal(t, "Wireless Headphones", sample[0].Name)
}

func TestQuery_EmptyCatalog(t *testing.T) {
	got := Query(nil, Filter{Search: "x", SortBy: SortPrice})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQuery_Search(t *testing.T) {
	tests := []struct {
		search string
		want   []int64
	}{
		{"wireless", []int64{1, 4}},
		{"CODE", []int64{2}},
		{"code", []int64{2}},
		{"shoes", []int64{3}},
		{"nothing matches", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := Query(sample, Filter{Search: tt.search})
			assert.Equal(t, tt.want, ids(got))
			for _, p := range got {
				hay := strings.ToLower(p.Name + "\x00" + p.Description)
				assert.Contains(t, hay, strings.ToLower(tt.search))
			}
		})
	}
}

func TestQuery_CategoryIsExactCaseInsensitive(t *testing.T) {
	assert.Equal(t, []int64{5}, ids(Query(sample, Filter{Category: "home & kitchen"})))
	assert.Empty(t, Query(sample, Filter{Category: "home"}))
}

func TestQuery_SellerID(t *testing.T) {
	assert.Equal(t, []int64{2, 3}, ids(Query(sample, Filter{SellerID: "s1"})))
}

func TestQuery_PriceBounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max *decimal.Decimal
		want     []int64
	}{
		{"min inclusive", dec("129.99"), nil, []int64{1, 3, 5}},
		{"max inclusive", nil, dec("49.99"), []int64{2, 4}},
		{"both", dec("40"), dec("130"), []int64{2, 3, 5}},
		{"min greater than max", dec("200"), dec("100"), []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Query(sample, Filter{MinPrice: tt.min, MaxPrice: tt.max})
			assert.Equal(t, tt.want, ids(got))
			for _, p := range got {
				if tt.min != nil {
					assert.True(t, p.Price.GreaterThanOrEqual(*tt.min))
				}
				if tt.max != nil {
					assert.True(t, p.Price.LessThanOrEqual(*tt.max))
				}
			}
		})
	}
}

func TestQuery_Sort(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want []int64
	}{
		{"price asc is stable", Filter{SortBy: SortPrice}, []int64{4, 2, 3, 5, 1}},
		{"price desc", Filter{SortBy: SortPrice, SortOrder: Desc}, []int64{1, 3, 5, 2, 4}},
		{"rating asc", Filter{SortBy: SortRating, SortOrder: Asc}, []int64{4, 1, 2, 5, 3}},
		{"rating desc", Filter{SortBy: SortRating, SortOrder: Desc}, []int64{3, 5, 1, 2, 4}},
		{"newest desc", Filter{SortBy: SortNewest, SortOrder: Desc}, []int64{5, 4, 3, 2, 1}},
		{"newest asc", Filter{SortBy: SortNewest}, []int64{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Query(sample, tt.f)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, got, Query(got, tt.f), "re-sorting is idempotent")
		})
	}
}

func TestQuery_PriceOrderIsMonotonic(t *testing.T) {
	asc := Query(Seed(), Filter{SortBy: SortPrice})
	for i := 1; i < len(asc); i++ {
		assert.True(t, asc[i-1].Price.LessThanOrEqual(asc[i].Price))
	}
	desc := Query(Seed(), Filter{SortBy: SortPrice, SortOrder: Desc})
	for i := 1; i < len(desc); i++ {
		assert.True(t, desc[i-1].Price.GreaterThanOrEqual(desc[i].Price))
	}
}

func TestQuery_DoesNotMutateInput(t *testing.T) {
	in := append([]Product(nil), sample...)
	_ = Query(in, Filter{SortBy: SortPrice, SortOrder: Desc})
	assert.Equal(t, sample, in)
}

func TestQuery_Scenario(t *testing.T) {
	catalog := []Product{
		{ID: 1, Price: decimal.NewFromInt(10), Stock: 5},
		{ID: 2, Price: decimal.NewFromInt(20), Stock: 0},
	}
	got := Query(catalog, Filter{MinPrice: dec("15")})
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(url.Values{
		"search":     {"mug"},
		"category":   {"Home"},
		"min_price":  {"1.5"},
		"max_price":  {"20"},
		"sort_by":    {"Price"},
		"sort_order": {"DESC"},
	})
	require.NoError(t, err)
	assert.Equal(t, "mug", f.Search)
	assert.Equal(t, SortPrice, f.SortBy)
	assert.Equal(t, Desc, f.SortOrder)
	assert.True(t, f.MinPrice.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, f.MaxPrice.Equal(decimal.NewFromInt(20)))

	f, err = ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Filter{}, f)
}

func TestParseFilter_Rejects(t *testing.T) {
	tests := map[string]url.Values{
		"bad sort field": {"sort_by": {"size"}},
		"bad sort order": {"sort_order": {"sideways"}},
		"bad number":     {"min_price": {"ten"}},
		"negative price": {"max_price": {"-1"}},
	}
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilter(q)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}
}
