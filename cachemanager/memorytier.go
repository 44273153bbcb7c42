// Package cachemanager implements the Two-Tier Cache Manager (D): an
// optional L1 (memory) cache layered in front of an optional L2 (file)
// cache behind a single httpengine.Store, serialised by one mutex.
package cachemanager

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/sandrolain/httpengine"
)

// MemoryTier is the in-process L1 tier: a plain mutex-guarded map, no
// byte-budget LRU of its own (that invariant belongs to the File Cache
// alone, per §4.2). Grounded on the teacher's now-superseded
// memorycache.go, generalised from a single in-memory map[string][]byte
// to the (Metadata, body) pair the engine requires and fitted with an
// optional entry-count ceiling so an unbounded L1 cannot be configured
// accidentally.
type MemoryTier struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	order   []string // insertion order, oldest first, for maxEntries eviction
	maxEntries int
}

type memoryEntry struct {
	meta httpengine.Metadata
	body []byte
}

// NewMemoryTier constructs an empty MemoryTier. maxEntries<=0 means
// unbounded; otherwise the oldest entry is evicted whenever a Put would
// exceed the ceiling.
func NewMemoryTier(maxEntries int) *MemoryTier {
	return &MemoryTier{
		entries:    map[string]memoryEntry{},
		maxEntries: maxEntries,
	}
}

var _ httpengine.Store = (*MemoryTier)(nil)

func (m *MemoryTier) GetMetadata(_ context.Context, key string) (httpengine.Metadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return httpengine.Metadata{}, false, nil
	}
	return e.meta, true, nil
}

func (m *MemoryTier) GetBody(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, &httpengine.Error{Kind: httpengine.KindIllegalState, Code: httpengine.CodeIllegalState, Message: "memory tier: no entry for key " + key}
	}
	return io.NopCloser(bytes.NewReader(e.body)), nil
}

func (m *MemoryTier) Put(_ context.Context, key string, meta httpengine.Metadata, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
		m.order = append(m.order, key)
	}
	stored := make([]byte, len(body))
	copy(stored, body)
	meta.Key = key
	meta.BodySize = int64(len(stored))
	m.entries[key] = memoryEntry{meta: meta, body: stored}
	return nil
}

func (m *MemoryTier) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

func (m *MemoryTier) removeLocked(key string) {
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MemoryTier) evictOldestLocked() {
	if len(m.order) == 0 {
		return
	}
	oldest := m.order[0]
	m.order = m.order[1:]
	delete(m.entries, oldest)
}

// ReleaseData is a no-op: MemoryTier hands out copies, never live
// references, so it has nothing to ref-count.
func (m *MemoryTier) ReleaseData(string) {}

// Purge empties the tier. mayDeleteIfBusy is accepted for interface
// symmetry with FileCache.Purge but has no effect here.
func (m *MemoryTier) Purge(bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]memoryEntry{}
	m.order = nil
	return true, nil
}
