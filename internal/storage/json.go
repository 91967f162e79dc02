package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

// JSON is a typed view over one blob key.
type JSON[T any] struct {
	Blobs Blobs
	Key   string
}

// Load decodes the blob. found is false when nothing was saved yet; a blob
// that fails to decode is an error.
func (j JSON[T]) Load(ctx context.Context) (v T, found bool, err error) {
	b, err := j.Blobs.Load(ctx, j.Key)
	if errors.Is(err, apperr.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("load %s: %w", j.Key, err)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", j.Key, err)
	}
	return v, true, nil
}

func (j JSON[T]) Save(ctx context.Context, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", j.Key, err)
	}
	if err := j.Blobs.Save(ctx, j.Key, b); err != nil {
		return fmt.Errorf("save %s: %w", j.Key, err)
	}
	return nil
}
