package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

type fixture struct {
	blobs   storage.Blobs
	catalog *catalog.Store
	carts   *cart.Carts
	clock   *clock.Manual
	events  *events.Recorder
	svc     *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		blobs:  storage.NewMemory(),
		clock:  clock.NewManual(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
		events: &events.Recorder{},
	}
	f.catalog = catalog.NewStore(f.blobs, nil)
	require.NoError(t, f.catalog.Import(context.Background(), []catalog.Product{
		{ID: 1, Name: "Mug", Price: decimal.RequireFromString("10"), Stock: 5, Image: "mug.jpg"},
		{ID: 2, Name: "Lamp", Price: decimal.RequireFromString("19.99"), Stock: 2},
	}))
	f.carts = cart.NewCarts(f.catalog, cart.DefaultTaxRate, f.blobs, nil)
	opts = append([]Option{WithClock(f.clock), WithPublisher(f.events, "test")}, opts...)
	f.svc = NewService(f.carts, f.catalog, f.blobs, nil, opts...)
	return f
}

var checkout = Checkout{
	ShippingAddress: session.Address{Street: "1 Main St", City: "Anytown", ZipCode: "12345", Country: "USA"},
	PaymentMethod:   PaymentCreditCard,
}

func (f *fixture) fill(t *testing.T, userID string, productID int64, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func TestCanTransition(t *testing.T) {
	forward := []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered}
	for i := 0; i+1 < len(forward); i++ {
		assert.True(t, CanTransition(forward[i], forward[i+1]))
		assert.False(t, CanTransition(forward[i+1], forward[i]), "no backwards moves")
	}
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped} {
		assert.True(t, CanTransition(s, StatusCancelled), s)
	}
	assert.False(t, CanTransition(StatusDelivered, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.False(t, CanTransition(StatusPending, StatusShipped), "no skipping")
}

func TestPlace_FreezesTotalsAndSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "u1", 1, 3)

	o, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "30.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "2.40", o.Tax.StringFixed(2))
	assert.Equal(t, "32.40", o.Total.StringFixed(2))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Mug", o.Items[0].Name)
	assert.Equal(t, "mug.jpg", o.Items[0].Image)

	assert.Empty(t, f.carts.Items("u1"), "cart cleared")
	p, err := f.catalog.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock, "stock reserved")

	price := decimal.NewFromInt(99)
	name := "Giant Mug"
	_, err = f.catalog.Update(ctx, 1, catalog.Patch{Price: &price, Name: &name})
	require.NoError(t, err)
	got, err := f.svc.Get(o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Items[0].Name)
	assert.Equal(t, "32.40", got.Total.StringFixed(2))

	require.Len(t, f.events.Events, 1)
	assert.Equal(t, events.TopicOrders, f.events.Events[0].Topic)
	var payload events.OrderPlacedPayload
	require.NoError(t, json.Unmarshal(f.events.Events[0].Envelope.Payload, &payload))
	assert.Equal(t, "32.40", payload.Total)
	assert.Equal(t, o.ID, f.events.Events[0].Envelope.CorrelationID)
}

func TestPlace_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Place(ctx, "u1", checkout)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument, "empty cart")

	f.fill(t, "u1", 2, 2)
	bad := checkout
	bad.PaymentMethod = "bitcoin"
	_, err = f.svc.Place(ctx, "u1", bad)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	bad = checkout
	bad.ShippingAddress.City = ""
	_, err = f.svc.Place(ctx, "u1", bad)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.svc.Place(ctx, "", checkout)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	// another buyer takes the stock first
	f.fill(t, "u2", 2, 1)
	_, err = f.svc.Place(ctx, "u2", checkout)
	require.NoError(t, err)
	_, err = f.svc.Place(ctx, "u1", checkout)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Len(t, f.carts.Items("u1"), 1, "cart kept on failure")

	require.NoError(t, f.catalog.Delete(ctx, 2))
	_, err = f.svc.Place(ctx, "u1", checkout)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Len(t, f.svc.ListByUser("u1"), 0)
}

func TestPlace_ExternalIDIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "u1", 1, 1)

	co := checkout
	co.ExternalID = "client-key-1"
	first, err := f.svc.Place(ctx, "u1", co)
	require.NoError(t, err)
	again, err := f.svc.Place(ctx, "u1", co)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.svc.ListByUser("u1"), 1)
}

func TestAdvance_ShippingAssignsTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "u1", 1, 1)
	o, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx, o.ID, StatusShipped)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	o, err = f.svc.Advance(ctx, o.ID, StatusProcessing)
	require.NoError(t, err)
	assert.Empty(t, o.TrackingNumber)

	f.clock.Advance(time.Hour)
	o, err = f.svc.Advance(ctx, o.ID, StatusShipped)
	require.NoError(t, err)
	assert.Regexp(t, `^TRK[0-9A-F]{10}$`, o.TrackingNumber)
	require.NotNil(t, o.EstimatedDelivery)
	assert.Equal(t, f.clock.Now().Add(deliveryWindow), *o.EstimatedDelivery)
	assert.Equal(t, f.clock.Now(), o.UpdatedAt)

	o, err = f.svc.Advance(ctx, o.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)

	_, err = f.svc.Advance(ctx, o.ID, Status("LOST"))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.svc.Advance(ctx, "nope", StatusProcessing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []string{
		events.EventOrderPlaced,
		events.EventOrderStatusChanged,
		events.EventOrderStatusChanged,
		events.EventOrderStatusChanged,
	}, f.events.Types())
}

func TestCancel_AnyStatusButDelivered(t *testing.T) {
	paths := map[Status][]Status{
		StatusPending:    nil,
		StatusProcessing: {StatusProcessing},
		StatusShipped:    {StatusProcessing, StatusShipped},
	}
	for start, steps := range paths {
		t.Run(string(start), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.fill(t, "u1", 1, 2)
			o, err := f.svc.Place(ctx, "u1", checkout)
			require.NoError(t, err)
			for _, to := range steps {
				_, err = f.svc.Advance(ctx, o.ID, to)
				require.NoError(t, err)
			}

			o, err = f.svc.Cancel(ctx, "u1", o.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			p, err := f.catalog.Get(1)
			require.NoError(t, err)
			assert.Equal(t, 5, p.Stock, "stock released")

			// second cancel is a no-op and does not release twice
			_, err = f.svc.Cancel(ctx, "u1", o.ID)
			require.NoError(t, err)
			p, _ = f.catalog.Get(1)
			assert.Equal(t, 5, p.Stock)
		})
	}
}

func TestCancel_DeliveredFailsAndKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "u1", 1, 1)
	o, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)
	for _, to := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		_, err = f.svc.Advance(ctx, o.ID, to)
		require.NoError(t, err)
	}

	_, err = f.svc.Cancel(ctx, "u1", o.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	got, err := f.svc.Get(o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestCancel_OtherUsersOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fill(t, "u1", 1, 1)
	o, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "u2", o.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, _ := f.svc.Get(o.ID)
	assert.Equal(t, StatusPending, got.Status)
}

func TestStatsAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fill(t, "u1", 1, 1)
	a, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	f.fill(t, "u1", 2, 1)
	b, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)
	f.fill(t, "u2", 1, 2)
	c, err := f.svc.Place(ctx, "u2", checkout)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, "u2", c.ID)
	require.NoError(t, err)

	mine := f.svc.ListByUser("u1")
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ID, "newest first")
	assert.Equal(t, a.ID, mine[1].ID)
	assert.Len(t, f.svc.ListBySeller([]int64{2}), 1)

	st := f.svc.Stats()
	assert.Equal(t, 3, st.TotalOrders)
	assert.Equal(t, 2, st.PendingDeliveries)
	assert.True(t, a.Total.Add(b.Total).Equal(st.TotalSales))
	assert.Equal(t, 1, st.ByStatus[StatusCancelled])
}

func TestOrders_PersistAndMirrorStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := &redisx.StatusCache{Redis: rdb}

	f := newFixture(t, WithStatusCache(cache))
	ctx := context.Background()
	f.fill(t, "u1", 1, 1)
	o, err := f.svc.Place(ctx, "u1", checkout)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, o.ID, StatusProcessing)
	require.NoError(t, err)

	cached, ok := cache.Order(ctx, o.ID)
	require.True(t, ok)
	assert.Equal(t, "PROCESSING", cached.Status)

	reloaded := NewService(f.carts, f.catalog, f.blobs, nil)
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.Get(o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.True(t, o.Total.Equal(got.Total))
}
