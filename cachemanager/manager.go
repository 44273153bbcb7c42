package cachemanager

import (
	"context"
	"io"
	"sync"

	"github.com/sandrolain/httpengine"
)

// releasable is satisfied by tiers that hand out live references needing
// an explicit release (the File Cache); MemoryTier implements it too,
// trivially, so the Manager can fan release_data out uniformly without a
// type switch per tier kind.
type releasable interface {
	ReleaseData(key string)
}

// purgeable is satisfied by tiers that support a bulk purge.
type purgeable interface {
	Purge(mayDeleteIfBusy bool) (bool, error)
}

// Manager is the Two-Tier Cache Manager (D): an optional L1 (memory) in
// front of an optional L2 (file), behind one httpengine.Store, with a
// single mutex serialising every operation per §4.3. At least one tier
// must be non-nil; both may be set, either may be nil, but not both nil.
type Manager struct {
	mu sync.Mutex
	l1 httpengine.Store
	l2 httpengine.Store
}

var _ httpengine.Store = (*Manager)(nil)

// New builds a Manager over the given tiers. Either may be nil but not
// both — a manager with no backing tier can never serve or store
// anything, which is always a configuration mistake.
func New(l1, l2 httpengine.Store) (*Manager, error) {
	if l1 == nil && l2 == nil {
		return nil, &httpengine.Error{Kind: httpengine.KindIllegalArgument, Code: httpengine.CodeIllegalArgument, Message: "cachemanager: at least one of l1, l2 must be non-nil"}
	}
	return &Manager{l1: l1, l2: l2}, nil
}

// GetMetadata tries L1 then L2, per §4.3: "try L1; if it returns false
// try L2." Neither tier is consulted more than once. The manager's mutex
// is held across both lookups, so no write made through the Manager can
// land between them.
func (m *Manager) GetMetadata(ctx context.Context, key string) (httpengine.Metadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.l1 != nil {
		meta, ok, err := m.l1.GetMetadata(ctx, key)
		if err != nil {
			return httpengine.Metadata{}, false, err
		}
		if ok {
			return meta, true, nil
		}
	}
	if m.l2 != nil {
		return m.l2.GetMetadata(ctx, key)
	}
	return httpengine.Metadata{}, false, nil
}

// GetBody tries L1 then L2, mirroring GetMetadata. A future revision is
// expected to promote an L2 hit into L1 (§4.3); this implementation does
// not, so repeated L2 hits stay on the slower tier until explicitly
// re-written.
func (m *Manager) GetBody(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.l1 != nil {
		body, err := m.l1.GetBody(ctx, key)
		if err == nil {
			return body, nil
		}
	}
	if m.l2 != nil {
		return m.l2.GetBody(ctx, key)
	}
	return nil, &httpengine.Error{Kind: httpengine.KindIllegalState, Code: httpengine.CodeIllegalState, Message: "cachemanager: no entry for key " + key}
}

// Put attempts both tiers; per §4.3 it succeeds iff at least one
// succeeds. When every present tier fails, the L1 error is returned if
// L1 failed, otherwise the L2 error.
func (m *Manager) Put(ctx context.Context, key string, meta httpengine.Metadata, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var l1Err, l2Err error
	attempted := false
	if m.l1 != nil {
		attempted = true
		l1Err = m.l1.Put(ctx, key, meta, body)
	}
	if m.l2 != nil {
		attempted = true
		l2Err = m.l2.Put(ctx, key, meta, body)
	}
	if !attempted {
		return nil
	}
	if (m.l1 == nil || l1Err != nil) && (m.l2 == nil || l2Err != nil) {
		if l1Err != nil {
			return l1Err
		}
		return l2Err
	}
	return nil
}

// Remove requires both tiers to succeed if both exist (§4.3's stricter
// rule for remove, unlike the at-least-one-of rule for other writes).
func (m *Manager) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.l1 != nil {
		if err := m.l1.Remove(ctx, key); err != nil {
			return err
		}
	}
	if m.l2 != nil {
		if err := m.l2.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseData fans release_data out to every tier that supports it.
func (m *Manager) ReleaseData(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.l1.(releasable); ok {
		r.ReleaseData(key)
	}
	if r, ok := m.l2.(releasable); ok {
		r.ReleaseData(key)
	}
}

// Purge fans out to every present, purge-capable tier; per §4.3 it
// succeeds iff all present tiers succeed.
func (m *Manager) Purge(mayDeleteIfBusy bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clean := true
	if p, ok := m.l1.(purgeable); ok {
		c, err := p.Purge(mayDeleteIfBusy)
		if err != nil {
			return false, err
		}
		clean = clean && c
	}
	if p, ok := m.l2.(purgeable); ok {
		c, err := p.Purge(mayDeleteIfBusy)
		if err != nil {
			return false, err
		}
		clean = clean && c
	}
	return clean, nil
}
