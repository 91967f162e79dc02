package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced         = "OrderPlaced"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventTicketCreated       = "TicketCreated"
	EventTicketStatusChanged = "TicketStatusChanged"
)

const (
	TopicOrders  = "storefront.orders"
	TopicTickets = "storefront.tickets"
)

// PartitionKey keeps every event of one order/ticket on one partition, in order.
func PartitionKey(id string) []byte { return []byte(id) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order or ticket id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID  string      `json:"order_id"`
	UserID   string      `json:"user_id"`
	Items    []OrderItem `json:"items"`
	Subtotal string      `json:"subtotal"`
	Tax      string      `json:"tax"`
	Total    string      `json:"total"`
}

type TicketCreatedPayload struct {
	TicketID string `json:"ticket_id"`
	UserID   string `json:"user_id"`
	Subject  string `json:"subject"`
}

// StatusChangedPayload is shared by orders and tickets.
type StatusChangedPayload struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New wraps payload in a v1 envelope.
func New(eventType, producer, correlationID string, at time.Time, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Publisher sends envelopes to a topic. Publishing is best effort: the
// stores are the source of truth and callers only log a failure.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

// Discard drops every event; used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, Envelope) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Topic    string
	Envelope Envelope
}

func (r *Recorder) Publish(_ context.Context, topic string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Topic: topic, Envelope: env})
	return nil
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Envelope.EventType
	}
	return out
}
