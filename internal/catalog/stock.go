package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// StockLine is a quantity of one product taken from or returned to stock.
type StockLine struct {
	ProductID int64
	Quantity  int
}

// Reserve takes stock for every line or for none of them. A missing product
// is ErrNotFound, a short one ErrInsufficientStock.
func (s *Store) Reserve(ctx context.Context, lines []StockLine) error {
	const op = "catalog.Reserve"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.List()
	for _, l := range lines {
		id := strconv.FormatInt(l.ProductID, 10)
		if l.Quantity <= 0 {
			return apperr.New(op, "product", id, apperr.ErrInvalidQuantity)
		}
		i := indexOf(next, l.ProductID)
		if i < 0 {
			return apperr.NotFound(op, "product", id)
		}
		if next[i].Stock < l.Quantity {
			return apperr.New(op, "product", id, fmt.Errorf("%w: required %d, available %d",
				apperr.ErrInsufficientStock, l.Quantity, next[i].Stock))
		}
		next[i].Stock -= l.Quantity
	}
	return s.commit(ctx, next)
}

// Release returns stock taken by Reserve. Products deleted in the meantime
// are skipped.
func (s *Store) Release(ctx context.Context, lines []StockLine) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.List()
	changed := false
	for _, l := range lines {
		if i := indexOf(next, l.ProductID); i >= 0 && l.Quantity > 0 {
			next[i].Stock += l.Quantity
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.commit(ctx, next)
}
