package wishlist

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

type ProductReader interface {
	Get(id int64) (catalog.Product, error)
}

type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID int64     `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

// Entry is an item resolved against the catalog; Product is nil when the
// product has been deleted since it was added.
type Entry struct {
	Item
	Product *catalog.Product `json:"product,omitempty"`
}

// Wishlists holds at most one item per (user, product).
type Wishlists struct {
	mu    sync.RWMutex
	items []Item

	catalog ProductReader
	clock   clock.Clock
	blob    *storage.JSON[[]Item]
	log     *slog.Logger
}

func New(products ProductReader, clk clock.Clock, blobs storage.Blobs, logger *slog.Logger) *Wishlists {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Wishlists{catalog: products, clock: clock.OrSystem(clk), log: logger.With("component", "wishlist")}
	if blobs != nil {
		w.blob = &storage.JSON[[]Item]{Blobs: blobs, Key: storage.KeyWishlist}
	}
	return w
}

func (w *Wishlists) Load(ctx context.Context) error {
	if w.blob == nil {
		return nil
	}
	items, _, err := w.blob.Load(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.items = items
	w.mu.Unlock()
	return nil
}

// Add is idempotent: adding a product already on the user's list returns the
// existing item unchanged.
func (w *Wishlists) Add(ctx context.Context, userID string, productID int64) (Item, error) {
	if _, err := w.catalog.Get(productID); err != nil {
		return Item{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexLocked(userID, productID); i >= 0 {
		return w.items[i], nil
	}
	it := Item{ID: uuid.NewString(), UserID: userID, ProductID: productID, AddedAt: w.clock.Now()}
	next := append(slices.Clone(w.items), it)
	if err := w.commitLocked(ctx, next); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (w *Wishlists) Remove(ctx context.Context, userID string, productID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(userID, productID)
	if i < 0 {
		return apperr.NotFound("wishlist.Remove", "wishlist item", strconv.FormatInt(productID, 10))
	}
	return w.commitLocked(ctx, slices.Delete(slices.Clone(w.items), i, i+1))
}

func (w *Wishlists) Contains(userID string, productID int64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.indexLocked(userID, productID) >= 0
}

// List returns the user's items in the order they were added.
func (w *Wishlists) List(userID string) []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := []Entry{}
	for _, it := range w.items {
		if it.UserID != userID {
			continue
		}
		e := Entry{Item: it}
		if p, err := w.catalog.Get(it.ProductID); err == nil {
			e.Product = &p
		}
		out = append(out, e)
	}
	return out
}

func (w *Wishlists) indexLocked(userID string, productID int64) int {
	return slices.IndexFunc(w.items, func(it Item) bool {
		return it.UserID == userID && it.ProductID == productID
	})
}

func (w *Wishlists) commitLocked(ctx context.Context, next []Item) error {
	if w.blob != nil {
		if err := w.blob.Save(ctx, next); err != nil {
			w.log.Error("wishlist save failed", "err", err)
			return err
		}
	}
	w.items = next
	return nil
}
