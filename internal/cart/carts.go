package cart

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

// ProductReader is the part of the catalog the cart reads.
type ProductReader interface {
	Get(id int64) (catalog.Product, error)
}

// Item is a stored cart row: at most one per product.
type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type ViewLine struct {
	Product   catalog.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is a cart resolved against the current catalog. Rows whose product
// was deleted are listed in Unavailable and left out of the totals.
type View struct {
	Lines       []ViewLine `json:"items"`
	Unavailable []int64    `json:"unavailable,omitempty"`
	Totals
}

// Carts keeps one cart per user.
type Carts struct {
	mu    sync.RWMutex
	carts map[string][]Item

	catalog ProductReader
	taxRate decimal.Decimal
	blob    *storage.JSON[map[string][]Item]
	log     *slog.Logger
}

func NewCarts(products ProductReader, taxRate decimal.Decimal, blobs storage.Blobs, logger *slog.Logger) *Carts {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Carts{
		carts:   map[string][]Item{},
		catalog: products,
		taxRate: taxRate,
		log:     logger.With("component", "cart"),
	}
	if blobs != nil {
		c.blob = &storage.JSON[map[string][]Item]{Blobs: blobs, Key: storage.KeyCarts}
	}
	return c
}

func (c *Carts) Load(ctx context.Context) error {
	if c.blob == nil {
		return nil
	}
	m, _, err := c.blob.Load(ctx)
	if err != nil {
		return err
	}
	if m == nil {
		m = map[string][]Item{}
	}
	c.mu.Lock()
	c.carts = m
	c.mu.Unlock()
	return nil
}

func (c *Carts) TaxRate() decimal.Decimal { return c.taxRate }

// Add puts qty of a product in the cart. Adding a product already in the
// cart increments its row; the combined quantity must fit the stock.
func (c *Carts) Add(ctx context.Context, userID string, productID int64, qty int) (View, error) {
	const op = "cart.Add"
	if qty <= 0 {
		return View{}, apperr.New(op, "product", strconv.FormatInt(productID, 10), apperr.ErrInvalidQuantity)
	}
	p, err := c.catalog.Get(productID)
	if err != nil {
		return View{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	items := slices.Clone(c.carts[userID])
	if i := indexOf(items, productID); i >= 0 {
		items[i].Quantity += qty
		if err := checkStock(op, p, items[i].Quantity); err != nil {
			return View{}, err
		}
	} else {
		if err := checkStock(op, p, qty); err != nil {
			return View{}, err
		}
		items = append(items, Item{ProductID: productID, Quantity: qty})
	}
	if err := c.commitLocked(ctx, userID, items); err != nil {
		return View{}, err
	}
	return c.viewLocked(userID), nil
}

// SetQuantity replaces the quantity of a row already in the cart.
func (c *Carts) SetQuantity(ctx context.Context, userID string, productID int64, qty int) (View, error) {
	const op = "cart.SetQuantity"
	id := strconv.FormatInt(productID, 10)
	if qty <= 0 {
		return View{}, apperr.New(op, "product", id, apperr.ErrInvalidQuantity)
	}
	p, err := c.catalog.Get(productID)
	if err != nil {
		return View{}, err
	}
	if err := checkStock(op, p, qty); err != nil {
		return View{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	items := slices.Clone(c.carts[userID])
	i := indexOf(items, productID)
	if i < 0 {
		return View{}, apperr.NotFound(op, "cart item", id)
	}
	items[i].Quantity = qty
	if err := c.commitLocked(ctx, userID, items); err != nil {
		return View{}, err
	}
	return c.viewLocked(userID), nil
}

func (c *Carts) Remove(ctx context.Context, userID string, productID int64) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := slices.Clone(c.carts[userID])
	i := indexOf(items, productID)
	if i < 0 {
		return View{}, apperr.NotFound("cart.Remove", "cart item", strconv.FormatInt(productID, 10))
	}
	items = slices.Delete(items, i, i+1)
	if err := c.commitLocked(ctx, userID, items); err != nil {
		return View{}, err
	}
	return c.viewLocked(userID), nil
}

func (c *Carts) Clear(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.carts[userID]) == 0 {
		return nil
	}
	return c.commitLocked(ctx, userID, nil)
}

// Items returns a copy of the stored rows.
func (c *Carts) Items(userID string) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.carts[userID])
}

func (c *Carts) View(userID string) View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked(userID)
}

// Resolve pairs rows with current product snapshots. Rows whose product no
// longer exists are returned separately.
func (c *Carts) Resolve(items []Item) (lines []Line, unavailable []int64) {
	for _, it := range items {
		p, err := c.catalog.Get(it.ProductID)
		if err != nil {
			unavailable = append(unavailable, it.ProductID)
			continue
		}
		lines = append(lines, Line{Product: p, Quantity: it.Quantity})
	}
	return lines, unavailable
}

func (c *Carts) viewLocked(userID string) View {
	lines, unavailable := c.Resolve(c.carts[userID])
	v := View{Lines: make([]ViewLine, 0, len(lines)), Unavailable: unavailable}
	for _, l := range lines {
		v.Lines = append(v.Lines, ViewLine{
			Product:   l.Product,
			Quantity:  l.Quantity,
			LineTotal: l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	v.Totals = Totalize(lines, c.taxRate)
	return v
}

func (c *Carts) commitLocked(ctx context.Context, userID string, items []Item) error {
	next := make(map[string][]Item, len(c.carts)+1)
	for k, v := range c.carts {
		next[k] = v
	}
	if len(items) == 0 {
		delete(next, userID)
	} else {
		next[userID] = items
	}
	if c.blob != nil {
		if err := c.blob.Save(ctx, next); err != nil {
			c.log.Error("cart save failed", "user_id", userID, "err", err)
			return err
		}
	}
	c.carts = next
	return nil
}

func checkStock(op string, p catalog.Product, qty int) error {
	if qty > p.Stock {
		return apperr.New(op, "product", p.IDString(), apperr.ErrInsufficientStock)
	}
	return nil
}

func indexOf(items []Item, productID int64) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.ProductID == productID })
}
