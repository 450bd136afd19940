package memory

import (
	"context"
	"sync"
	"time"
)

type idempotencyEntry struct {
	response  []byte
	expiresAt time.Time
}

// IdempotencyStore keeps idempotency keys in process. It is used when no Redis is configured.
type IdempotencyStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]idempotencyEntry
}

// NewIdempotencyStore creates an IdempotencyStore. now defaults to time.Now.
func NewIdempotencyStore(now func() time.Time) *IdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &IdempotencyStore{now: now, entries: make(map[string]idempotencyEntry)}
}

func (s *IdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return true, e.response, nil
	}

	s.entries[key] = idempotencyEntry{response: response, expiresAt: now.Add(ttl)}
	return false, nil, nil
}

func (s *IdempotencyStore) Update(_ context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = idempotencyEntry{
		response:  append([]byte(nil), response...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
