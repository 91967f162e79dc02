package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
)

func product(id int64, price string, stock int) catalog.Product {
	return catalog.Product{ID: id, Name: "p", Price: decimal.RequireFromString(price), Stock: stock}
}

func TestAggregate_Scenario(t *testing.T) {
	totals, err := Aggregate([]Line{{Product: product(1, "10", 5), Quantity: 3}}, DefaultTaxRate)
	require.NoError(t, err)
	assert.Equal(t, "30.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "2.40", totals.Tax.StringFixed(2))
	assert.Equal(t, "32.40", totals.Total.StringFixed(2))

	_, err = Aggregate([]Line{{Product: product(2, "20", 0), Quantity: 1}}, DefaultTaxRate)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestAggregate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		qty  int
		want error
	}{
		{"zero", 0, apperr.ErrInvalidQuantity},
		{"negative", -2, apperr.ErrInvalidQuantity},
		{"above stock", 6, apperr.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate([]Line{{Product: product(1, "10", 5), Quantity: tt.qty}}, DefaultTaxRate)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAggregate_TotalMatchesRoundedGross(t *testing.T) {
	prices := []string{"0.01", "0.05", "0.06", "1.99", "19.99", "199.99", "33.33", "12.345"}
	for _, price := range prices {
		for q := 1; q <= 25; q++ {
			p := product(1, price, 25)
			totals, err := Aggregate([]Line{{Product: p, Quantity: q}}, DefaultTaxRate)
			require.NoError(t, err)

			gross := p.Price.Mul(decimal.NewFromInt(int64(q)))
			want := gross.Add(gross.Mul(DefaultTaxRate))
			if gross.Exponent() >= -2 {
				assert.True(t, RoundCents(want).Equal(totals.Total), "price=%s q=%d got=%s want=%s", price, q, totals.Total, RoundCents(want))
			}
			assert.True(t, totals.Subtotal.Add(totals.Tax).Equal(totals.Total), "no drift between parts and total")
		}
	}
}

func TestRoundCents_HalfUp(t *testing.T) {
	tests := map[string]string{
		"0.125":  "0.13",
		"0.124":  "0.12",
		"2.4":    "2.40",
		"1.005":  "1.01",
		"0.0049": "0.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, RoundCents(decimal.RequireFromString(in)).StringFixed(2), in)
	}
}

func TestTotalize_SumsWithoutMidRounding(t *testing.T) {
	lines := []Line{
		{Product: product(1, "0.333", 10), Quantity: 3},
		{Product: product(2, "0.001", 10), Quantity: 1},
	}
	totals := Totalize(lines, DefaultTaxRate)
	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("1.000")))
	assert.Equal(t, "0.08", totals.Tax.StringFixed(2))
}

func TestTotalize_Empty(t *testing.T) {
	totals := Totalize(nil, DefaultTaxRate)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.IsZero())
}
