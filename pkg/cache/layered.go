package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
)

// LayeredCache is a two-level cache: a fast L1 (usually memory) over a shared L2 (usually Redis).
type LayeredCache struct {
	l1    Service
	l2    Service
	l1TTL time.Duration
}

// NewLayeredCache creates a layered cache.
func NewLayeredCache(l1, l2 Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		L1TTL: time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{l1: l1, l2: l2, l1TTL: cfg.L1TTL}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	// write-through: L2 first
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, value, lc.l1Expiration(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := lc.l1.Get(ctx, key); err == nil {
		return v, nil
	}
	v, err := lc.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = lc.l1.Set(ctx, key, v, lc.l1TTL)
	return v, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

// Close closes both levels.
func (lc *LayeredCache) Close() error {
	var result error
	for _, c := range []Service{lc.l1, lc.l2} {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (lc *LayeredCache) l1Expiration(d time.Duration) time.Duration {
	if d <= 0 || d > lc.l1TTL {
		return lc.l1TTL
	}
	return d
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }
