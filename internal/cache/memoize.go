package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

type memoConfig struct {
	ttl    time.Duration
	ttlSet bool
	prefix string
}

// MemoOption configures Memoize.
type MemoOption func(*memoConfig)

// WithTTL sets how long results stay cached. NoExpiration keeps them forever.
func WithTTL(ttl time.Duration) MemoOption {
	return func(cfg *memoConfig) {
		cfg.ttl = ttl
		cfg.ttlSet = true
	}
}

// WithKeyPrefix namespaces the keys of a memoized function.
func WithKeyPrefix(prefix string) MemoOption {
	return func(cfg *memoConfig) {
		cfg.prefix = prefix
	}
}

// memoized boxes a result so a nil interface value is still a hit.
type memoized[V any] struct {
	value V
}

// Memoize wraps fn so repeated calls with an equal argument inside the TTL window
// return the cached result without calling fn. name identifies the computation
// in the key. Errors are returned to the caller and never cached. fn's side
// effects are skipped on hits.
func Memoize[A any, V any](c *Cache, name string, fn func(context.Context, A) (V, error), opts ...MemoOption) func(context.Context, A) (V, error) {
	cfg := memoConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.ttlSet {
		cfg.ttl = c.DefaultTTLValue()
	}
	identity := name
	if cfg.prefix != "" {
		identity = cfg.prefix + "_" + name
	}

	var group singleflight.Group

	return func(ctx context.Context, arg A) (V, error) {
		key := MakeKey(identity, []any{arg}, nil)

		if cached, ok := c.Get(key); ok {
			if hit, ok := cached.(memoized[V]); ok {
				return hit.value, nil
			}
		}

		// Callers collapsed onto this call share its result, so one caller
		// going away must not cancel it for the rest.
		shared := context.WithoutCancel(ctx)
		result, err, _ := group.Do(key, func() (interface{}, error) {
			if cached, ok := c.Get(key); ok {
				if hit, ok := cached.(memoized[V]); ok {
					return hit, nil
				}
			}
			value, err := fn(shared, arg)
			if err != nil {
				return nil, err
			}
			entry := memoized[V]{value: value}
			c.Set(key, entry, cfg.ttl)
			return entry, nil
		})
		if err != nil {
			var zero V
			return zero, err
		}
		return result.(memoized[V]).value, nil
	}
}
