package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type CachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache keeps the latest known order/ticket status for fast reads.
// The stores stay the source of truth; a miss means "ask the store".
type StatusCache struct{ Redis *redis.Client }

func (c *StatusCache) SetOrder(ctx context.Context, orderID, status string, at time.Time) error {
	return c.set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), status, at)
}

func (c *StatusCache) SetTicket(ctx context.Context, ticketID, status string, at time.Time) error {
	return c.set(ctx, fmt.Sprintf(KeyTicketStatus, ticketID), status, at)
}

func (c *StatusCache) Order(ctx context.Context, orderID string) (CachedStatus, bool) {
	return c.get(ctx, fmt.Sprintf(KeyOrderStatus, orderID))
}

func (c *StatusCache) Ticket(ctx context.Context, ticketID string) (CachedStatus, bool) {
	return c.get(ctx, fmt.Sprintf(KeyTicketStatus, ticketID))
}

func (c *StatusCache) set(ctx context.Context, key, status string, at time.Time) error {
	b, err := json.Marshal(CachedStatus{Status: status, UpdatedAt: at})
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, key, b, TTLStatusCache).Err()
}

func (c *StatusCache) get(ctx context.Context, key string) (CachedStatus, bool) {
	var out CachedStatus
	b, err := c.Redis.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil and transport errors both read as a miss
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}
