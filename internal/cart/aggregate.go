package cart

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
)

var DefaultTaxRate = decimal.RequireFromString("0.08")

// Line is a product snapshot paired with a quantity.
type Line struct {
	Product  catalog.Product
	Quantity int
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Aggregate checks every line against the stock in its product snapshot and
// computes the totals. Stock is only checked, never reserved.
func Aggregate(lines []Line, taxRate decimal.Decimal) (Totals, error) {
	for _, l := range lines {
		if err := checkLine(l.Product, l.Quantity); err != nil {
			return Totals{}, err
		}
	}
	return Totalize(lines, taxRate), nil
}

// Totalize computes totals without stock checks. The subtotal is exact, the
// tax is rounded half-up to cents once, and total = subtotal + tax.
func Totalize(lines []Line, taxRate decimal.Decimal) Totals {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	tax := RoundCents(sub.Mul(taxRate))
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// RoundCents rounds half-up to two decimal places. Amounts here are never
// negative, where decimal's half-away-from-zero is half-up.
func RoundCents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func checkLine(p catalog.Product, qty int) error {
	if qty <= 0 {
		return apperr.New("cart.Aggregate", "product", p.IDString(), apperr.ErrInvalidQuantity)
	}
	if qty > p.Stock {
		return apperr.New("cart.Aggregate", "product", p.IDString(), apperr.ErrInsufficientStock)
	}
	return nil
}
