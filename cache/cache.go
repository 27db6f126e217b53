// Package cache holds short-lived copies of content store responses so page
// views and repeated searches do not each cost a CMS round trip.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a byte cache with per-entry TTL.
type Store interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Flush drops every entry written through this store.
	Flush(ctx context.Context) error
}

type entry struct {
	val     []byte
	expires time.Time
}

// DefaultSweepInterval is how often a Memory cache drops expired entries
// that were never read again.
const DefaultSweepInterval = time.Minute

// Memory is an in-process Store. A background sweep removes expired entries;
// call Stop when the cache is no longer used.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemory creates an empty in-memory cache that sweeps every
// DefaultSweepInterval.
func NewMemory() *Memory {
	return newMemory(time.Now, DefaultSweepInterval)
}

// newMemory starts a sweep every interval; a zero interval disables it.
func newMemory(now func() time.Time, interval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     now,
		done:    make(chan struct{}),
	}
	if interval > 0 {
		go m.sweep(interval)
	}
	return m
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.DeleteExpired()
		case <-m.done:
			return
		}
	}
}

// Stop ends the background sweep.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// DeleteExpired removes every expired entry and reports how many it dropped.
func (m *Memory) DeleteExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, e := range m.entries {
		if !m.valid(e) {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

func (m *Memory) valid(e entry) bool {
	return m.now().Before(e.expires)
}

// Get returns a fresh entry. Expired entries are removed lazily; a read lock
// is enough for the common hit path.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.valid(e) {
		return e.val, true, nil
	}

	m.mu.Lock()
	if cur, ok := m.entries[key]; ok && !m.valid(cur) {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil, false, nil
}

// Set stores val until ttl elapses.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = entry{val: val, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Flush clears the cache so the next read goes to the store.
func (m *Memory) Flush(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
