package storage

import (
	"context"
	"time"
)

type latency struct {
	next  Blobs
	delay time.Duration
}

// WithLatency delays every call by d before reaching next, the same fixed
// artificial delay the storefront applies to its simulated network. A
// cancelled context aborts the wait.
func WithLatency(next Blobs, d time.Duration) Blobs {
	if d <= 0 {
		return next
	}
	return &latency{next: next, delay: d}
}

func (l *latency) wait(ctx context.Context) error {
	t := time.NewTimer(l.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *latency) Load(ctx context.Context, key string) ([]byte, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Load(ctx, key)
}

func (l *latency) Save(ctx context.Context, key string, value []byte) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.next.Save(ctx, key, value)
}
