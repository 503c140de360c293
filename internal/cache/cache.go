// Package cache holds the most recent guarded sample per token.
package cache

import (
	"context"
	"sync"
	"time"

	"RateSentinel/internal/model"
)

// Store is a sample cache with per-entry expiry.
// Get must never return an entry once now >= its expiry.
type Store interface {
	Get(ctx context.Context, key string) (model.RateSample, bool, error)
	Put(ctx context.Context, key string, sample model.RateSample, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Entry is a cached sample with its expiry.
type Entry struct {
	Sample    model.RateSample `json:"sample"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the entry must not be served at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]Entry), now: now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (model.RateSample, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return model.RateSample{}, false, nil
	}
	if e.Expired(m.now()) {
		m.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, ok := m.entries[key]; ok && cur.Expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return model.RateSample{}, false, nil
	}
	return e.Sample, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, sample model.RateSample, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{Sample: sample, ExpiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
