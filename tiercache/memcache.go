package tiercache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcacheBlobs adapts the teacher's memcache.Cache to Blobs, dropping
// its bespoke stale-marker keys (MarkStale/IsStale/GetStale): staleness
// is now handled once, correctly, by the Cache Strategy (E) rather than
// duplicated per backend.
type memcacheBlobs struct {
	client *memcache.Client
}

func memcacheKey(key string) string {
	return "httpengine:" + key
}

// NewMemcache returns a Blobs tier backed by one or more memcache
// servers, weighted equally; a server listed multiple times gets a
// proportional share.
func NewMemcache(servers ...string) (Blobs, error) {
	if len(servers) == 0 {
		return nil, errors.New("tiercache: at least one memcache server is required")
	}
	return &memcacheBlobs{client: memcache.New(servers...)}, nil
}

func (c *memcacheBlobs) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := c.client.Get(memcacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: memcache get failed for key %q: %w", key, err)
	}
	return item.Value, true, nil
}

func (c *memcacheBlobs) Set(_ context.Context, key string, data []byte) error {
	if err := c.client.Set(&memcache.Item{Key: memcacheKey(key), Value: data}); err != nil {
		return fmt.Errorf("tiercache: memcache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *memcacheBlobs) Delete(_ context.Context, key string) error {
	if err := c.client.Delete(memcacheKey(key)); err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil
		}
		return fmt.Errorf("tiercache: memcache delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *memcacheBlobs) Close() error {
	return nil
}
