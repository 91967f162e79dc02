// Package storage is the persistence collaborator of the storefront: every
// collection (catalog, carts, orders, tickets, users, ...) is loaded and saved
// as one opaque blob, all or nothing. Backends live next to their clients
// (redisx.Blobs, postgres.Blobs); this package holds the interface, the
// in-memory backend and the decorators.
package storage

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// Blobs stores whole collections under a key. Load returns an error wrapping
// apperr.ErrNotFound when nothing was ever saved under key.
type Blobs interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

const (
	KeyCatalog  = "catalog"
	KeyCarts    = "carts"
	KeyWishlist = "wishlist"
	KeyOrders   = "orders"
	KeyTickets  = "tickets"
	KeyReviews  = "reviews"
	KeyUsers    = "users"
)

// SessionKey is the blob key of one client session.
func SessionKey(sessionID string) string { return "session:" + sessionID }

type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, apperr.NotFound("storage.Load", "blob", key)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}
