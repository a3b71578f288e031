package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

type countingObserver struct {
	mu                    sync.Mutex
	hits, misses, corrupt int
}

func (o *countingObserver) CacheHit(string)     { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *countingObserver) CacheMiss(string)    { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *countingObserver) CacheCorrupt(string) { o.mu.Lock(); o.corrupt++; o.mu.Unlock() }

func counter(calls *atomic.Int32, value string) func(context.Context) (result, error) {
	return func(context.Context) (result, error) {
		n := calls.Add(1)
		return result{Value: value, Score: float64(n)}, nil
	}
}

func TestGetOrCompute_HitReturnsStoredPayload(t *testing.T) {
	obs := &countingObserver{}
	c := New(NewMemoryStore(0), WithObserver(obs))
	key := Key{UserID: "u1", Feature: "efficiency", Bucket: "2024-02-14"}

	var calls atomic.Int32
	first, err := GetOrCompute(context.Background(), c, key, time.Hour, counter(&calls, "a"))
	require.NoError(t, err)
	second, err := GetOrCompute(context.Background(), c, key, time.Hour, counter(&calls, "b"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestGetOrCompute_DistinctKeysDoNotCollide(t *testing.T) {
	c := New(NewMemoryStore(0))
	var calls atomic.Int32

	keys := []Key{
		{UserID: "u1", Feature: "prediction:h30", Bucket: "1"},
		{UserID: "u1", Feature: "prediction:h7", Bucket: "1"},
		{UserID: "u2", Feature: "prediction:h30", Bucket: "1"},
		{UserID: "u1", Feature: "prediction:h30", Bucket: "2"},
	}
	for _, k := range keys {
		_, err := GetOrCompute(context.Background(), c, k, time.Hour, counter(&calls, k.String()))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(len(keys)), calls.Load())
}

func TestGetOrCompute_CorruptEntryIsMiss(t *testing.T) {
	obs := &countingObserver{}
	store := NewMemoryStore(0)
	c := New(store, WithObserver(obs), WithPrefix("insights:"))
	key := Key{UserID: "u1", Feature: "recommendation", Bucket: "2024-W07"}

	corruptions := map[string][]byte{
		"not json":      []byte("{{{"),
		"wrong key":     []byte(`{"key":"u2|recommendation|2024-W07","payload":{"value":"x"},"computed_at":"2099-01-01T00:00:00Z","ttl_seconds":60}`),
		"wrong payload": []byte(`{"key":"u1|recommendation|2024-W07","payload":"oops","computed_at":"2099-01-01T00:00:00Z","ttl_seconds":60}`),
	}

	for name, raw := range corruptions {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(context.Background(), "insights:"+key.String(), raw, time.Hour))

			var calls atomic.Int32
			got, err := GetOrCompute(context.Background(), c, key, time.Hour, counter(&calls, "fresh"))
			require.NoError(t, err)
			assert.Equal(t, "fresh", got.Value)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
	assert.Equal(t, len(corruptions), obs.corrupt)
}

func TestGetOrCompute_ExpiredEntryIsRecomputed(t *testing.T) {
	now := time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	store.now = func() time.Time { return now }
	c := New(store, WithClock(func() time.Time { return now }))
	key := Key{UserID: "u1", Feature: "prediction:h30", Bucket: "x"}

	var calls atomic.Int32
	_, err := GetOrCompute(context.Background(), c, key, 5*time.Minute, counter(&calls, "a"))
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	got, err := GetOrCompute(context.Background(), c, key, 5*time.Minute, counter(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", got.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_ComputeErrorIsNotCached(t *testing.T) {
	store := NewMemoryStore(0)
	c := New(store)
	key := Key{UserID: "u1", Feature: "efficiency", Bucket: "d"}

	_, err := GetOrCompute(context.Background(), c, key, time.Hour, func(context.Context) (result, error) {
		return result{}, errors.New("provider down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

// failingStore fails every operation
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestGetOrCompute_StoreFailureStillServes(t *testing.T) {
	c := New(failingStore{})
	var calls atomic.Int32

	got, err := GetOrCompute(context.Background(), c, Key{UserID: "u1", Feature: "f", Bucket: "b"}, time.Hour, counter(&calls, "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Value)
}

func TestGetOrCompute_CollapsesConcurrentMisses(t *testing.T) {
	c := New(NewMemoryStore(0))
	key := Key{UserID: "u1", Feature: "recommendation", Bucket: "2024-W07"}

	release := make(chan struct{})
	var calls atomic.Int32
	compute := func(context.Context) (result, error) {
		calls.Add(1)
		<-release
		return result{Value: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := GetOrCompute(context.Background(), c, key, time.Hour, compute)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r.Value)
	}
}

func TestKeyFor(t *testing.T) {
	now := time.Date(2024, 2, 14, 12, 2, 30, 0, time.UTC)

	key, ttl := KeyFor("u42", "recommendation", RefreshWeekly, now)
	assert.Equal(t, "u42|recommendation|2024-W07", key.String())
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC).Sub(now), ttl)

	key, ttl = KeyFor("u42", "efficiency", RefreshDaily, now)
	assert.Equal(t, "2024-02-14", key.Bucket)
	assert.Equal(t, 11*time.Hour+57*time.Minute+30*time.Second, ttl)

	key, ttl = KeyFor("u42", "prediction:h30", RefreshFiveMinutes, now)
	sameBucket, _ := KeyFor("u42", "prediction:h30", RefreshFiveMinutes, now.Add(2*time.Minute))
	nextBucket, _ := KeyFor("u42", "prediction:h30", RefreshFiveMinutes, now.Add(3*time.Minute))
	assert.Equal(t, 2*time.Minute+30*time.Second, ttl)
	assert.Equal(t, key, sameBucket)
	assert.NotEqual(t, key, nextBucket)
}
