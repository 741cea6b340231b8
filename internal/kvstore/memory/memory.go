package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/gopherauth/internal/kvstore"
)

type entry struct {
	value    string
	deadline time.Time // zero if never expires
}

func (e entry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && !now.Before(e.deadline)
}

// Process local kvstore.Store
// Expired entries are dropped on lookup or by Sweep
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type Option func(*Store)

// Use custom clock instead of time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Return live entry, drop it if expired. Must be called with mu held
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return e, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return e, false
	}
	return e, true
}

func (s *Store) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, deadline: s.deadline(ttl)}
	return nil
}

func (s *Store) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}

	s.entries[key] = entry{value: value, deadline: s.deadline(ttl)}
	return true, nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) GetDel(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", kvstore.ErrNotFound
	}
	delete(s.entries, key)
	return e.value, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Remove all expired entries, return count of removed
func (s *Store) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Count of stored entries including expired but not swept yet
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ kvstore.Store = (*Store)(nil)
