package reviews

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ProductID int64     `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog is the slice of the catalog store reviews write through.
type Catalog interface {
	Get(id int64) (catalog.Product, error)
	Update(ctx context.Context, id int64, patch catalog.Patch) (catalog.Product, error)
}

// baseline is a product's rating before its first stored review, taken from
// the seeded rating and review count.
type baseline struct {
	Sum   decimal.Decimal `json:"sum"`
	Count int             `json:"count"`
}

// book is the persisted collection.
type book struct {
	Reviews   []Review           `json:"reviews"`
	Baselines map[int64]baseline `json:"baselines"`
}

type Reviews struct {
	mu        sync.RWMutex
	reviews   []Review
	baselines map[int64]baseline

	catalog Catalog
	clock   clock.Clock
	blob    *storage.JSON[book]
	log     *slog.Logger
}

func New(products Catalog, clk clock.Clock, blobs storage.Blobs, logger *slog.Logger) *Reviews {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reviews{
		baselines: map[int64]baseline{},
		catalog:   products,
		clock:     clock.OrSystem(clk),
		log:       logger.With("component", "reviews"),
	}
	if blobs != nil {
		r.blob = &storage.JSON[book]{Blobs: blobs, Key: storage.KeyReviews}
	}
	return r
}

func (r *Reviews) Load(ctx context.Context) error {
	if r.blob == nil {
		return nil
	}
	b, _, err := r.blob.Load(ctx)
	if err != nil {
		return err
	}
	if b.Baselines == nil {
		b.Baselines = map[int64]baseline{}
	}
	r.mu.Lock()
	r.reviews, r.baselines = b.Reviews, b.Baselines
	r.mu.Unlock()
	return nil
}

// Create stores a review and recomputes the product's average from its
// baseline and every stored rating. A user reviews a product at most once.
func (r *Reviews) Create(ctx context.Context, author session.User, productID int64, rating int, comment string) (Review, error) {
	const op = "reviews.Create"
	if author.ID == "" {
		return Review{}, apperr.New(op, "review", "", apperr.ErrNotAuthenticated)
	}
	if rating < 1 || rating > 5 {
		return Review{}, apperr.Invalid(op, "rating must be within 1..5, got %d", rating)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.ContainsFunc(r.reviews, func(rv Review) bool {
		return rv.UserID == author.ID && rv.ProductID == productID
	}) {
		return Review{}, apperr.Invalid(op, "product %d already reviewed", productID)
	}

	p, err := r.catalog.Get(productID)
	if err != nil {
		return Review{}, err
	}
	base, ok := r.baselines[productID]
	if !ok {
		base = baseline{
			Sum:   decimal.NewFromFloat(p.Rating).Mul(decimal.NewFromInt(int64(p.ReviewCount))),
			Count: p.ReviewCount,
		}
	}
	ratings := []int{rating}
	for _, rv := range r.reviews {
		if rv.ProductID == productID {
			ratings = append(ratings, rv.Rating)
		}
	}
	avg, count := average(base, ratings)
	if _, err := r.catalog.Update(ctx, productID, catalog.Patch{Rating: &avg, ReviewCount: &count}); err != nil {
		return Review{}, err
	}

	rv := Review{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		UserName:  author.Name,
		ProductID: productID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: r.clock.Now(),
	}
	next := book{Reviews: append(slices.Clone(r.reviews), rv), Baselines: maps.Clone(r.baselines)}
	next.Baselines[productID] = base
	if r.blob != nil {
		if err := r.blob.Save(ctx, next); err != nil {
			r.log.Error("reviews save failed", "err", err)
			// put the product's rating back
			if _, rerr := r.catalog.Update(ctx, productID, catalog.Patch{Rating: &p.Rating, ReviewCount: &p.ReviewCount}); rerr != nil {
				r.log.Error("rating rollback failed", "product_id", productID, "err", rerr)
			}
			return Review{}, err
		}
	}
	r.reviews, r.baselines = next.Reviews, next.Baselines
	return rv, nil
}

// ListByProduct returns the product's reviews, newest first.
func (r *Reviews) ListByProduct(productID int64) []Review {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Review{}
	for i := len(r.reviews) - 1; i >= 0; i-- {
		if r.reviews[i].ProductID == productID {
			out = append(out, r.reviews[i])
		}
	}
	return out
}

// average is the mean of the baseline and ratings, rounded once to one
// decimal.
func average(base baseline, ratings []int) (float64, int) {
	total := base.Sum
	for _, v := range ratings {
		total = total.Add(decimal.NewFromInt(int64(v)))
	}
	n := base.Count + len(ratings)
	if n == 0 {
		return 0, 0
	}
	avg, _ := total.Div(decimal.NewFromInt(int64(n))).Round(1).Float64()
	return avg, n
}
