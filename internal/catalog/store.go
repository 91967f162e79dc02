package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

// Store holds the catalog. Reads return snapshots; writes build the next
// collection on a copy, persist it, and only then publish it, so a failed
// save leaves the store unchanged and no reader ever sees a half-applied
// mutation.
type Store struct {
	writeMu sync.Mutex // serialises read-modify-write

	mu       sync.RWMutex // guards products/nextID
	products []Product
	nextID   int64

	blob *storage.JSON[[]Product]
	log  *slog.Logger
}

// NewStore returns an empty store. blobs may be nil for a memory-only catalog.
func NewStore(blobs storage.Blobs, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{nextID: 1, log: logger.With("component", "catalog")}
	if blobs != nil {
		s.blob = &storage.JSON[[]Product]{Blobs: blobs, Key: storage.KeyCatalog}
	}
	return s
}

// Load reads the persisted catalog. When nothing was persisted yet the
// embedded seed catalog is imported and saved.
func (s *Store) Load(ctx context.Context) error {
	if s.blob == nil {
		return s.Import(ctx, Seed())
	}
	ps, found, err := s.blob.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		s.log.Info("no persisted catalog, importing seed")
		return s.Import(ctx, Seed())
	}
	if err := checkUnique(ps); err != nil {
		return err
	}
	s.mu.Lock()
	s.products = ps
	s.nextID = maxID(ps) + 1
	s.mu.Unlock()
	s.log.Info("catalog loaded", "products", len(ps))
	return nil
}

// Import replaces the whole catalog, e.g. from a seed file.
func (s *Store) Import(ctx context.Context, ps []Product) error {
	if err := checkUnique(ps); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit(ctx, slices.Clone(ps))
}

func (s *Store) Insert(ctx context.Context, np NewProduct) (Product, error) {
	const op = "catalog.Insert"
	if err := np.validate(op); err != nil {
		return Product{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.List()
	p := Product{
		ID:          s.peekNextID(),
		Name:        np.Name,
		Description: np.Description,
		Price:       np.Price,
		Category:    np.Category,
		Image:       np.Image,
		Stock:       np.Stock,
		SellerID:    np.SellerID,
	}
	next = append(next, p)
	if err := s.commit(ctx, next); err != nil {
		return Product{}, err
	}
	s.log.Info("product inserted", "product_id", p.ID, "seller_id", p.SellerID)
	return p, nil
}

func (s *Store) Update(ctx context.Context, id int64, patch Patch) (Product, error) {
	const op = "catalog.Update"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.List()
	i := indexOf(next, id)
	if i < 0 {
		return Product{}, apperr.NotFound(op, "product", strconv.FormatInt(id, 10))
	}
	updated, err := patch.apply(op, next[i])
	if err != nil {
		return Product{}, err
	}
	next[i] = updated
	if err := s.commit(ctx, next); err != nil {
		return Product{}, err
	}
	return updated, nil
}

// Delete removes a product. Carts, wishlists and orders that still point at
// the id treat it as unavailable.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.List()
	i := indexOf(next, id)
	if i < 0 {
		return apperr.NotFound("catalog.Delete", "product", strconv.FormatInt(id, 10))
	}
	next = slices.Delete(next, i, i+1)
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.log.Info("product deleted", "product_id", id)
	return nil
}

func (s *Store) Get(id int64) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.products, id); i >= 0 {
		return s.products[i], nil
	}
	return Product{}, apperr.NotFound("catalog.Get", "product", strconv.FormatInt(id, 10))
}

// List returns a snapshot; changing it does not touch the store.
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Categories returns the distinct categories in first-seen order.
func (s *Store) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range s.List() {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

func (s *Store) peekNextID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// commit must be called with writeMu held.
func (s *Store) commit(ctx context.Context, next []Product) error {
	if s.blob != nil {
		if err := s.blob.Save(ctx, next); err != nil {
			s.log.Error("catalog save failed", "err", err)
			return err
		}
	}
	s.mu.Lock()
	s.products = next
	if m := maxID(next) + 1; m > s.nextID {
		s.nextID = m
	}
	s.mu.Unlock()
	return nil
}

func indexOf(ps []Product, id int64) int {
	return slices.IndexFunc(ps, func(p Product) bool { return p.ID == id })
}

func maxID(ps []Product) int64 {
	var m int64
	for _, p := range ps {
		if p.ID > m {
			m = p.ID
		}
	}
	return m
}

func checkUnique(ps []Product) error {
	seen := make(map[int64]bool, len(ps))
	for _, p := range ps {
		if p.ID <= 0 {
			return apperr.Invalid("catalog.Import", "product id must be positive, got %d", p.ID)
		}
		if seen[p.ID] {
			return apperr.Invalid("catalog.Import", "duplicate product id %d", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
