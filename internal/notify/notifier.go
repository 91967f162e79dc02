// Package notify consumes the storefront lifecycle events. It keeps the Redis
// status cache warm for readers that never touch the API process, and logs one
// customer notification per event.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/events"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

// Notifier is installed as a consumer Handler on both lifecycle topics.
type Notifier struct {
	Redis   *redis.Client
	Status  *redisx.StatusCache
	Service string // dedup namespace
	Log     *slog.Logger
}

func New(rdb *redis.Client, service string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		Redis:   rdb,
		Status:  &redisx.StatusCache{Redis: rdb},
		Service: service,
		Log:     logger.With("component", "notifier"),
	}
}

// Handle processes one message. Redelivered events are skipped by event id;
// unknown event types are acknowledged and ignored.
func (n *Notifier) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		metrics.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		n.Log.Warn("dropping malformed event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}

	first, err := redisx.MarkOnce(ctx, n.Redis, fmt.Sprintf(redisx.KeyDedup, n.Service, env.EventID), redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		metrics.EventsConsumed.WithLabelValues(env.EventType, "duplicate").Inc()
		return nil
	}

	if err := n.dispatch(ctx, env); err != nil {
		// let the event be retried after redelivery
		n.Redis.Del(ctx, fmt.Sprintf(redisx.KeyDedup, n.Service, env.EventID))
		metrics.EventsConsumed.WithLabelValues(env.EventType, "error").Inc()
		return err
	}
	metrics.EventsConsumed.WithLabelValues(env.EventType, "ok").Inc()
	return nil
}

func (n *Notifier) dispatch(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		n.Log.Info("notify order placed", "user_id", p.UserID, "order_id", p.OrderID, "total", p.Total, "items", len(p.Items))
		return n.Status.SetOrder(ctx, p.OrderID, "PENDING", env.OccurredAt)

	case events.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[events.StatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		n.Log.Info("notify order status", "order_id", p.ID, "from", p.From, "to", p.To)
		return n.setNewer(ctx, n.Status.Order, n.Status.SetOrder, p)

	case events.EventTicketCreated:
		p, err := kafkax.UnwrapPayload[events.TicketCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		n.Log.Info("notify ticket received", "user_id", p.UserID, "ticket_id", p.TicketID, "subject", p.Subject)
		return n.Status.SetTicket(ctx, p.TicketID, "OPEN", env.OccurredAt)

	case events.EventTicketStatusChanged:
		p, err := kafkax.UnwrapPayload[events.StatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		n.Log.Info("notify ticket status", "ticket_id", p.ID, "from", p.From, "to", p.To)
		return n.setNewer(ctx, n.Status.Ticket, n.Status.SetTicket, p)
	}
	return nil
}

// setNewer never lets a late event overwrite a newer cached status.
func (n *Notifier) setNewer(
	ctx context.Context,
	get func(context.Context, string) (redisx.CachedStatus, bool),
	set func(context.Context, string, string, time.Time) error,
	p events.StatusChangedPayload,
) error {
	if cur, ok := get(ctx, p.ID); ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return nil
	}
	return set(ctx, p.ID, p.To, p.UpdatedAt)
}
