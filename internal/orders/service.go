package orders

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

const deliveryWindow = 5 * 24 * time.Hour

// Inventory takes stock at checkout and gives it back on cancellation.
type Inventory interface {
	Reserve(ctx context.Context, lines []catalog.StockLine) error
	Release(ctx context.Context, lines []catalog.StockLine) error
}

// StatusCache is the optional fast-read mirror of order status.
type StatusCache interface {
	SetOrder(ctx context.Context, orderID, status string, at time.Time) error
}

type Service struct {
	placeMu sync.Mutex // one checkout at a time

	mu     sync.RWMutex
	orders []Order

	carts     *cart.Carts
	inventory Inventory
	clock     clock.Clock
	blob      *storage.JSON[[]Order]
	events    events.Publisher
	cache     StatusCache
	producer  string
	log       *slog.Logger
}

type Option func(*Service)

func WithPublisher(p events.Publisher, producer string) Option {
	return func(s *Service) { s.events, s.producer = p, producer }
}

func WithStatusCache(c StatusCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = clock.OrSystem(c) }
}

func NewService(carts *cart.Carts, inv Inventory, blobs storage.Blobs, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		carts:     carts,
		inventory: inv,
		clock:     clock.System{},
		events:    events.Discard{},
		log:       logger.With("component", "orders"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if blobs != nil {
		s.blob = &storage.JSON[[]Order]{Blobs: blobs, Key: storage.KeyOrders}
	}
	return s
}

func (s *Service) Load(ctx context.Context) error {
	if s.blob == nil {
		return nil
	}
	list, _, err := s.blob.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.orders = list
	s.mu.Unlock()
	return nil
}

// Place turns the user's cart into an order. Prices, names and totals are
// frozen at this point. A repeated ExternalID returns the order it created
// the first time.
func (s *Service) Place(ctx context.Context, userID string, co Checkout) (Order, error) {
	const op = "orders.Place"
	if userID == "" {
		return Order{}, apperr.New(op, "order", "", apperr.ErrNotAuthenticated)
	}
	if err := validateCheckout(op, co); err != nil {
		return Order{}, err
	}

	s.placeMu.Lock()
	defer s.placeMu.Unlock()

	if co.ExternalID != "" {
		if o, ok := s.byExternalID(userID, co.ExternalID); ok {
			return o, nil
		}
	}

	cartItems := s.carts.Items(userID)
	if len(cartItems) == 0 {
		return Order{}, apperr.Invalid(op, "cart is empty")
	}
	lines, unavailable := s.carts.Resolve(cartItems)
	if len(unavailable) > 0 {
		return Order{}, apperr.New(op, "product", strconv.FormatInt(unavailable[0], 10), apperr.ErrUnavailable)
	}
	totals, err := cart.Aggregate(lines, s.carts.TaxRate())
	if err != nil {
		return Order{}, err
	}

	stock := make([]catalog.StockLine, len(lines))
	items := make([]Item, len(lines))
	for i, l := range lines {
		stock[i] = catalog.StockLine{ProductID: l.Product.ID, Quantity: l.Quantity}
		items[i] = Item{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			Image:     l.Product.Image,
		}
	}
	if err := s.inventory.Reserve(ctx, stock); err != nil {
		return Order{}, err
	}

	now := s.clock.Now()
	o := Order{
		ID:              uuid.NewString(),
		ExternalID:      co.ExternalID,
		UserID:          userID,
		Items:           items,
		Status:          StatusPending,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Total:           totals.Total,
		ShippingAddress: co.ShippingAddress,
		PaymentMethod:   co.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	err = s.commitLocked(ctx, append(slices.Clone(s.orders), o))
	s.mu.Unlock()
	if err != nil {
		s.release(ctx, o)
		return Order{}, err
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		s.log.Warn("cart clear after checkout failed", "user_id", userID, "order_id", o.ID, "err", err)
	}

	metrics.OrdersPlaced.Inc()
	s.log.Info("order placed", "order_id", o.ID, "user_id", userID, "total", o.Total.StringFixed(2))
	s.publish(ctx, events.EventOrderPlaced, o.ID, placedPayload(o))
	s.cacheStatus(ctx, o)
	return o.clone(), nil
}

// Advance moves an order along the status table; it is the staff action.
// Moving to SHIPPED assigns a tracking number and an estimated delivery date.
func (s *Service) Advance(ctx context.Context, id string, to Status) (Order, error) {
	const op = "orders.Advance"
	if !to.Valid() {
		return Order{}, apperr.Invalid(op, "unknown order status %q", to)
	}
	return s.transition(ctx, op, id, to, func(Order) error { return nil })
}

// Cancel is the buyer's cancellation of their own order. It works from any
// status but DELIVERED; cancelling a cancelled order is a no-op.
func (s *Service) Cancel(ctx context.Context, userID, id string) (Order, error) {
	const op = "orders.Cancel"
	return s.transition(ctx, op, id, StatusCancelled, func(o Order) error {
		if o.UserID != userID {
			// someone else's order reads as missing
			return apperr.NotFound(op, "order", id)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, op, id string, to Status, check func(Order) error) (Order, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Order{}, apperr.NotFound(op, "order", id)
	}
	cur := s.orders[i]
	if err := check(cur); err != nil {
		s.mu.Unlock()
		return Order{}, err
	}
	from := cur.Status
	if from == StatusCancelled && to == StatusCancelled {
		s.mu.Unlock()
		return cur.clone(), nil
	}
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return Order{}, apperr.New(op, "order", id, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to))
	}

	now := s.clock.Now()
	next := slices.Clone(s.orders)
	o := next[i].clone()
	o.Status = to
	o.UpdatedAt = now
	if to == StatusShipped {
		o.TrackingNumber = trackingNumber()
		eta := now.Add(deliveryWindow)
		o.EstimatedDelivery = &eta
	}
	next[i] = o
	err := s.commitLocked(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return Order{}, err
	}

	if to == StatusCancelled {
		s.release(ctx, o)
	}
	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	s.log.Info("order status changed", "order_id", id, "from", from, "to", to)
	s.publish(ctx, events.EventOrderStatusChanged, id, events.StatusChangedPayload{
		ID:        id,
		From:      string(from),
		To:        string(to),
		UpdatedAt: now,
	})
	s.cacheStatus(ctx, o)
	return o.clone(), nil
}

func (s *Service) Get(id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.orders[i].clone(), nil
	}
	return Order{}, apperr.NotFound("orders.Get", "order", id)
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(userID string) []Order {
	return s.filter(func(o Order) bool { return o.UserID == userID })
}

// List returns every order, newest first.
func (s *Service) List() []Order {
	return s.filter(func(Order) bool { return true })
}

// ListBySeller returns orders containing at least one of the given products.
func (s *Service) ListBySeller(productIDs []int64) []Order {
	return s.filter(func(o Order) bool {
		return slices.ContainsFunc(o.Items, func(it Item) bool {
			return slices.Contains(productIDs, it.ProductID)
		})
	})
}

// Stats summarises the order book. Cancelled orders do not count as sales.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{TotalSales: decimal.Zero, ByStatus: map[Status]int{}}
	for _, o := range s.orders {
		st.TotalOrders++
		st.ByStatus[o.Status]++
		if o.Status != StatusCancelled {
			st.TotalSales = st.TotalSales.Add(o.Total)
		}
		if o.Status.Open() {
			st.PendingDeliveries++
		}
	}
	return st
}

func (s *Service) filter(keep func(Order) bool) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		if keep(s.orders[i]) {
			out = append(out, s.orders[i].clone())
		}
	}
	return out
}

func (s *Service) byExternalID(userID, externalID string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.UserID == userID && o.ExternalID == externalID {
			return o.clone(), true
		}
	}
	return Order{}, false
}

func (s *Service) indexLocked(id string) int {
	return slices.IndexFunc(s.orders, func(o Order) bool { return o.ID == id })
}

func (s *Service) commitLocked(ctx context.Context, next []Order) error {
	if s.blob != nil {
		if err := s.blob.Save(ctx, next); err != nil {
			s.log.Error("orders save failed", "err", err)
			return err
		}
	}
	s.orders = next
	return nil
}

func (s *Service) release(ctx context.Context, o Order) {
	lines := make([]catalog.StockLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = catalog.StockLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	if err := s.inventory.Release(ctx, lines); err != nil {
		s.log.Error("stock release failed", "order_id", o.ID, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, eventType, orderID string, payload any) {
	env, err := events.New(eventType, s.producer, orderID, s.clock.Now(), payload)
	if err == nil {
		err = s.events.Publish(ctx, events.TopicOrders, env)
	}
	if err != nil {
		s.log.Warn("publish failed", "event", eventType, "order_id", orderID, "err", err)
	}
}

func (s *Service) cacheStatus(ctx context.Context, o Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetOrder(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
		s.log.Warn("status cache write failed", "order_id", o.ID, "err", err)
	}
}

func placedPayload(o Order) events.OrderPlacedPayload {
	items := make([]events.OrderItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = events.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price.StringFixed(2)}
	}
	return events.OrderPlacedPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Items:    items,
		Subtotal: o.Subtotal.StringFixed(2),
		Tax:      o.Tax.StringFixed(2),
		Total:    o.Total.StringFixed(2),
	}
}

func validateCheckout(op string, co Checkout) error {
	if !co.PaymentMethod.Valid() {
		return apperr.Invalid(op, "unknown payment method %q", co.PaymentMethod)
	}
	a := co.ShippingAddress
	for _, f := range [...]struct{ name, v string }{
		{"street", a.Street}, {"city", a.City}, {"zip_code", a.ZipCode}, {"country", a.Country},
	} {
		if strings.TrimSpace(f.v) == "" {
			return apperr.Invalid(op, "shipping address %s is required", f.name)
		}
	}
	return nil
}

func trackingNumber() string {
	return "TRK" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
