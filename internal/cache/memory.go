package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value []byte
	exp   time.Time
}

// MemoryStore is an in-process Store with lazy expiry and a periodic sweep
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]memoryEntry
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a store. A positive sweepInterval starts a
// background goroutine that drops expired entries until Close is called.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{m: make(map[string]memoryEntry), now: time.Now, stop: make(chan struct{})}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.exp) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.m[key] = memoryEntry{value: value, exp: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Close stops the sweep goroutine
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *MemoryStore) removeExpired() {
	now := s.now()
	s.mu.Lock()
	for k, e := range s.m {
		if !now.Before(e.exp) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}
