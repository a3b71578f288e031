// Package cache memoizes computed insights per (user, feature, time bucket).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Store is a byte-oriented TTL key-value backend
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Observer receives cache lookup outcomes per feature
type Observer interface {
	CacheHit(feature string)
	CacheMiss(feature string)
	CacheCorrupt(feature string)
}

// Entry is the envelope stored for every cached result
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	ComputedAt time.Time       `json:"computed_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
}

// Key identifies one cached result
type Key struct {
	UserID  string
	Feature string
	Bucket  string
}

func (k Key) String() string {
	return k.UserID + "|" + k.Feature + "|" + k.Bucket
}

// InsightCache is the get-or-compute front of a Store
type InsightCache struct {
	store    Store
	prefix   string
	observer Observer
	now      func() time.Time
	group    singleflight.Group
}

// Option configures an InsightCache
type Option func(*InsightCache)

// WithPrefix namespaces every stored key
func WithPrefix(prefix string) Option {
	return func(c *InsightCache) { c.prefix = prefix }
}

// WithObserver reports hits and misses to o
func WithObserver(o Observer) Option {
	return func(c *InsightCache) { c.observer = o }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *InsightCache) { c.now = now }
}

// New creates an InsightCache over store
func New(store Store, opts ...Option) *InsightCache {
	c := &InsightCache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InsightCache) storageKey(k Key) string {
	return c.prefix + k.String()
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns a fresh one. Unreadable entries and store failures count as
// misses. Concurrent misses for the same key in this process share one
// computation.
func GetOrCompute[T any](ctx context.Context, c *InsightCache, key Key, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	log := logger.Ctx(ctx).With(logger.Feature(key.Feature), logger.String("cache_key", key.String()))

	if value, ok := lookup[T](ctx, c, key, log); ok {
		return value, nil
	}

	v, err, _ := c.group.Do(c.storageKey(key), func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return value, err
		}
		if err := store(ctx, c, key, ttl, value); err != nil {
			log.Warn("failed to store cached insight", logger.Err(err))
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func lookup[T any](ctx context.Context, c *InsightCache, key Key, log logger.Logger) (T, bool) {
	var zero T
	raw, found, err := c.store.Get(ctx, c.storageKey(key))
	if err != nil {
		log.Warn("cache read failed, recomputing", logger.Err(err))
		c.miss(key)
		return zero, false
	}
	if !found {
		c.miss(key)
		return zero, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Key != key.String() {
		c.corrupt(key, log, err)
		return zero, false
	}
	if c.now().After(entry.ComputedAt.Add(time.Duration(entry.TTLSeconds) * time.Second)) {
		c.miss(key)
		return zero, false
	}

	var value T
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		c.corrupt(key, log, err)
		return zero, false
	}
	if c.observer != nil {
		c.observer.CacheHit(key.Feature)
	}
	return value, true
}

func store[T any](ctx context.Context, c *InsightCache, key Key, ttl time.Duration, value T) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	raw, err := json.Marshal(Entry{
		Key:        key.String(),
		Payload:    payload,
		ComputedAt: c.now().UTC(),
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return c.store.Set(ctx, c.storageKey(key), raw, ttl)
}

func (c *InsightCache) miss(key Key) {
	if c.observer != nil {
		c.observer.CacheMiss(key.Feature)
	}
}

func (c *InsightCache) corrupt(key Key, log logger.Logger, err error) {
	fields := []logger.Field{}
	if err != nil {
		fields = append(fields, logger.Err(err))
	}
	log.Warn("discarding unreadable cache entry", fields...)
	if c.observer != nil {
		c.observer.CacheCorrupt(key.Feature)
		c.observer.CacheMiss(key.Feature)
	}
}
