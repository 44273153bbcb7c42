// Package tiercache adapts a family of external key/value backends — each
// grounded on one of the teacher's original standalone cache packages —
// into the single Blobs shape the Two-Tier Cache Manager (D) needs to use
// any of them as a pluggable L1 or L2. A Blobs implementation trades the
// File Cache's ref-counted, LRU-bounded semantics for whatever durability
// and eviction policy its backend offers natively; the caller decides
// which tradeoff fits.
package tiercache

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"

	"github.com/sandrolain/httpengine"
)

// Blobs is the minimal interface every tier adapter in this package
// implements: byte-oriented get/set/delete, plus Close for backends that
// own a network connection or client handle.
type Blobs interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// StoreAdapter wraps a Blobs backend as an httpengine.Store, gob-encoding
// the (Metadata, body) pair as a single blob per key the way filecache's
// Cache Database persists Metadata rows, since most Blobs backends (redis,
// memcache, a KV bucket) have no separate metadata column.
type StoreAdapter struct {
	blobs Blobs
}

// NewStoreAdapter wraps blobs as an httpengine.Store.
func NewStoreAdapter(blobs Blobs) *StoreAdapter {
	return &StoreAdapter{blobs: blobs}
}

var _ httpengine.Store = (*StoreAdapter)(nil)

func (a *StoreAdapter) GetMetadata(ctx context.Context, key string) (httpengine.Metadata, bool, error) {
	entry, ok, err := a.getEntry(ctx, key)
	if err != nil || !ok {
		return httpengine.Metadata{}, ok, err
	}
	return entry.Metadata, true, nil
}

func (a *StoreAdapter) GetBody(ctx context.Context, key string) (io.ReadCloser, error) {
	entry, ok, err := a.getEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &httpengine.Error{Kind: httpengine.KindIllegalState, Code: httpengine.CodeIllegalState, Message: "tiercache: no entry for key " + key}
	}
	return io.NopCloser(bytes.NewReader(entry.Body)), nil
}

func (a *StoreAdapter) getEntry(ctx context.Context, key string) (httpengine.CacheEntry, bool, error) {
	raw, ok, err := a.blobs.Get(ctx, key)
	if err != nil || !ok {
		return httpengine.CacheEntry{}, ok, err
	}
	var entry httpengine.CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return httpengine.CacheEntry{}, false, &httpengine.Error{Kind: httpengine.KindExecution, Code: httpengine.CodeExecution, Message: "tiercache: corrupt entry for key " + key, Cause: err}
	}
	return entry, true, nil
}

func (a *StoreAdapter) Put(ctx context.Context, key string, meta httpengine.Metadata, body []byte) error {
	meta.Key = key
	meta.BodySize = int64(len(body))
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(httpengine.CacheEntry{Metadata: meta, Body: body}); err != nil {
		return &httpengine.Error{Kind: httpengine.KindExecution, Code: httpengine.CodeExecution, Message: "tiercache: failed to encode entry", Cause: err}
	}
	return a.blobs.Set(ctx, key, buf.Bytes())
}

func (a *StoreAdapter) Remove(ctx context.Context, key string) error {
	return a.blobs.Delete(ctx, key)
}
