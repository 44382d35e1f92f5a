package kv

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	n         int64
	members   map[string]struct{}
	expiresAt time.Time
}

// Memory is an in-process Counters. State is lost on restart and is not
// shared between instances.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry

	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memEntry), Now: time.Now}
}

// live returns the entry for key, dropping it first if it has expired.
// Callers hold m.mu.
func (m *Memory) live(key string) *memEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !m.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		e = &memEntry{expiresAt: m.Now().Add(ttl)}
		m.entries[key] = e
	}
	e.n++
	return e.n, nil
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.live(key); e != nil {
		return e.n, nil
	}
	return 0, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) AddMember(_ context.Context, key, member string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key)
	if e == nil {
		e = &memEntry{}
		m.entries[key] = e
	}
	// A live key first written by Incr has no member set yet.
	if e.members == nil {
		e.members = make(map[string]struct{})
	}
	e.members[member] = struct{}{}
	e.expiresAt = m.Now().Add(ttl)
	return int64(len(e.members)), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Sweep drops every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}
