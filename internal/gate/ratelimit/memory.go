package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memoryCleanupInterval = 5 * time.Minute

// MemoryStore keeps buckets in process. It enforces the same bucket
// semantics as the shared store but only for this instance.
type MemoryStore struct {
	mu          sync.Mutex
	buckets     map[string]Bucket
	lastCleanup time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]Bucket)}
}

func (m *MemoryStore) Apply(_ context.Context, key string, cfg Config, now time.Time, consume bool) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeCleanup(cfg, now)

	stored, exists := m.buckets[key]
	b := refill(stored, exists, cfg, now)

	if !consume || b.Tokens <= 0 {
		return Result{Allowed: false, Bucket: b}, nil
	}

	b.Tokens--
	m.buckets[key] = b
	return Result{Allowed: true, Bucket: b}, nil
}

// maybeCleanup drops buckets idle for at least a full window. Such a bucket
// would refill to full on its next use, which is what a missing bucket
// yields anyway. Callers hold m.mu.
func (m *MemoryStore) maybeCleanup(cfg Config, now time.Time) {
	if now.Sub(m.lastCleanup) < memoryCleanupInterval {
		return
	}
	m.lastCleanup = now

	for k, b := range m.buckets {
		if now.Sub(b.LastRefill) >= cfg.Window {
			delete(m.buckets, k)
		}
	}
}

// Len reports how many buckets are held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
