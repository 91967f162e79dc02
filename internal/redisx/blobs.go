package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// Blobs is the Redis backend of storage.Blobs. Each collection is a plain
// string value, so a save replaces the whole collection in one SET.
type Blobs struct{ Redis *redis.Client }

func (b *Blobs) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := b.Redis.Get(ctx, fmt.Sprintf(KeyBlob, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("redisx.Load", "blob", key)
	}
	return v, err
}

func (b *Blobs) Save(ctx context.Context, key string, value []byte) error {
	return b.Redis.Set(ctx, fmt.Sprintf(KeyBlob, key), value, 0).Err()
}
