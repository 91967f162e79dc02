package support

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/clock"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/storage"
)

type Ticket struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	Subject          string    `json:"subject"`
	Message          string    `json:"message"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	RelatedProductID *int64    `json:"related_product_id,omitempty"`
}

// StatusCache is the optional fast-read mirror of ticket status.
type StatusCache interface {
	SetTicket(ctx context.Context, ticketID, status string, at time.Time) error
}

type Tracker struct {
	mu      sync.RWMutex
	tickets []Ticket

	clock    clock.Clock
	blob     *storage.JSON[[]Ticket]
	events   events.Publisher
	cache    StatusCache
	producer string
	log      *slog.Logger
}

type Option func(*Tracker)

func WithPublisher(p events.Publisher, producer string) Option {
	return func(t *Tracker) { t.events, t.producer = p, producer }
}

func WithStatusCache(c StatusCache) Option {
	return func(t *Tracker) { t.cache = c }
}

func NewTracker(clk clock.Clock, blobs storage.Blobs, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{clock: clock.OrSystem(clk), events: events.Discard{}, log: logger.With("component", "support")}
	for _, opt := range opts {
		opt(t)
	}
	if blobs != nil {
		t.blob = &storage.JSON[[]Ticket]{Blobs: blobs, Key: storage.KeyTickets}
	}
	return t
}

func (t *Tracker) Load(ctx context.Context) error {
	if t.blob == nil {
		return nil
	}
	ts, _, err := t.blob.Load(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.tickets = ts
	t.mu.Unlock()
	return nil
}

// Create opens a ticket on behalf of author. Any signed-in role may open one.
func (t *Tracker) Create(ctx context.Context, author session.User, subject, message string, relatedProductID *int64) (Ticket, error) {
	const op = "support.Create"
	subject, message = strings.TrimSpace(subject), strings.TrimSpace(message)
	switch {
	case author.ID == "":
		return Ticket{}, apperr.New(op, "ticket", "", apperr.ErrNotAuthenticated)
	case subject == "":
		return Ticket{}, apperr.Invalid(op, "subject is required")
	case message == "":
		return Ticket{}, apperr.Invalid(op, "message is required")
	}
	now := t.clock.Now()
	tk := Ticket{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		UserName:  author.Name,
		Subject:   subject,
		Message:   message,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if relatedProductID != nil {
		id := *relatedProductID
		tk.RelatedProductID = &id
	}

	t.mu.Lock()
	next := append(slices.Clone(t.tickets), tk)
	err := t.commitLocked(ctx, next)
	t.mu.Unlock()
	if err != nil {
		return Ticket{}, err
	}

	t.publish(ctx, events.EventTicketCreated, tk.ID, events.TicketCreatedPayload{
		TicketID: tk.ID,
		UserID:   tk.UserID,
		Subject:  tk.Subject,
	})
	t.cacheStatus(ctx, tk)
	return tk, nil
}

// Transition moves a ticket along the status table. Only admins may call it.
func (t *Tracker) Transition(ctx context.Context, actor session.User, id string, to Status) (Ticket, error) {
	const op = "support.Transition"
	if actor.Role != session.RoleAdmin {
		return Ticket{}, apperr.New(op, "ticket", id, apperr.ErrForbidden)
	}
	if !to.Valid() {
		return Ticket{}, apperr.Invalid(op, "unknown ticket status %q", to)
	}

	t.mu.Lock()
	i := t.indexLocked(id)
	if i < 0 {
		t.mu.Unlock()
		return Ticket{}, apperr.NotFound(op, "ticket", id)
	}
	from := t.tickets[i].Status
	if !CanTransition(from, to) {
		t.mu.Unlock()
		return Ticket{}, apperr.New(op, "ticket", id, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to))
	}
	next := slices.Clone(t.tickets)
	next[i].Status = to
	next[i].UpdatedAt = t.clock.Now()
	tk := next[i]
	err := t.commitLocked(ctx, next)
	t.mu.Unlock()
	if err != nil {
		return Ticket{}, err
	}

	metrics.TicketTransitions.WithLabelValues(string(to)).Inc()
	t.log.Info("ticket status changed", "ticket_id", id, "from", from, "to", to, "by", actor.ID)
	t.publish(ctx, events.EventTicketStatusChanged, tk.ID, events.StatusChangedPayload{
		ID:        tk.ID,
		From:      string(from),
		To:        string(to),
		UpdatedAt: tk.UpdatedAt,
	})
	t.cacheStatus(ctx, tk)
	return tk, nil
}

func (t *Tracker) Get(id string) (Ticket, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexLocked(id); i >= 0 {
		return t.tickets[i], nil
	}
	return Ticket{}, apperr.NotFound("support.Get", "ticket", id)
}

// ListByUser returns the user's tickets, newest first.
func (t *Tracker) ListByUser(userID string) []Ticket {
	return t.filter(func(tk Ticket) bool { return tk.UserID == userID })
}

// List returns every ticket, newest first.
func (t *Tracker) List() []Ticket {
	return t.filter(func(Ticket) bool { return true })
}

// CountByStatus feeds the admin dashboard.
func (t *Tracker) CountByStatus() map[Status]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[Status]int{}
	for _, tk := range t.tickets {
		out[tk.Status]++
	}
	return out
}

func (t *Tracker) filter(keep func(Ticket) bool) []Ticket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := []Ticket{}
	for i := len(t.tickets) - 1; i >= 0; i-- {
		if keep(t.tickets[i]) {
			out = append(out, t.tickets[i])
		}
	}
	return out
}

func (t *Tracker) indexLocked(id string) int {
	return slices.IndexFunc(t.tickets, func(tk Ticket) bool { return tk.ID == id })
}

func (t *Tracker) commitLocked(ctx context.Context, next []Ticket) error {
	if t.blob != nil {
		if err := t.blob.Save(ctx, next); err != nil {
			t.log.Error("tickets save failed", "err", err)
			return err
		}
	}
	t.tickets = next
	return nil
}

func (t *Tracker) publish(ctx context.Context, eventType, ticketID string, payload any) {
	env, err := events.New(eventType, t.producer, ticketID, t.clock.Now(), payload)
	if err == nil {
		err = t.events.Publish(ctx, events.TopicTickets, env)
	}
	if err != nil {
		t.log.Warn("publish failed", "event", eventType, "ticket_id", ticketID, "err", err)
	}
}

func (t *Tracker) cacheStatus(ctx context.Context, tk Ticket) {
	if t.cache == nil {
		return
	}
	if err := t.cache.SetTicket(ctx, tk.ID, string(tk.Status), tk.UpdatedAt); err != nil {
		t.log.Warn("status cache write failed", "ticket_id", tk.ID, "err", err)
	}
}
