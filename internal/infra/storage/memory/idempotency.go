package memory

import (
	"context"
	"sync"
	"time"

	"staybook/internal/app/middleware"
)

// IdempotencyStore keeps replayed command results in memory, honoring the
// same retention window the document-backed store enforces with a TTL index:
// an expired key executes fresh instead of replaying a stale result.
type IdempotencyStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]storedResult
	now   func() time.Time
}

type storedResult struct {
	record    middleware.IdempotencyRecord
	expiresAt time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:   ttl,
		items: make(map[string]storedResult),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.items[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if !stored.expiresAt.IsZero() && !stored.expiresAt.After(s.now()) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return stored.record, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}
	s.items[rec.Key] = storedResult{record: rec, expiresAt: expiresAt}
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
