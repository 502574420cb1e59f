package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store counts hits per key inside fixed windows. A window starts with the first hit and
// lasts period.
type Store interface {
	Get(ctx context.Context, key string) (count int, resetTime time.Time, err error)
	Increment(ctx context.Context, key string, period time.Duration) (count int, resetTime time.Time, err error)
	// Decrement gives back one hit in the current window. It never goes below zero and
	// never starts a window.
	Decrement(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	count     int
	resetTime time.Time
}

func NewMemoryStore() *MemoryStore {
	store := newMemoryStore(time.Now)
	go store.cleanup(time.Minute)
	return store
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  now,
		stop: make(chan struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && s.now().Before(e.resetTime) {
		return e.count, e.resetTime, nil
	}
	return 0, time.Time{}, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, period time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.data[key]; ok && now.Before(e.resetTime) {
		e.count++
		return e.count, e.resetTime, nil
	}

	e := &entry{count: 1, resetTime: now.Add(period)}
	s.data[key] = e
	return e.count, e.resetTime, nil
}

func (s *MemoryStore) Decrement(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && s.now().Before(e.resetTime) && e.count > 0 {
		e.count--
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) cleanup(interval time.Duration) {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.data {
		if !now.Before(e.resetTime) {
			delete(s.data, key)
		}
	}
}
