package tiercache

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
)

// freecacheBlobs adapts the teacher's freecache.Cache to Blobs: an
// in-process, zero-GC-overhead tier good for an L1 in front of a
// network-backed L2.
type freecacheBlobs struct {
	cache *freecache.Cache
}

// NewFreecache builds a Blobs tier of the given size in bytes (512KB
// minimum, enforced by freecache itself).
func NewFreecache(sizeBytes int) Blobs {
	return &freecacheBlobs{cache: freecache.NewCache(sizeBytes)}
}

func (c *freecacheBlobs) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := c.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: freecache get failed for key %q: %w", key, err)
	}
	return value, true, nil
}

func (c *freecacheBlobs) Set(_ context.Context, key string, data []byte) error {
	if err := c.cache.Set([]byte(key), data, 0); err != nil {
		return fmt.Errorf("tiercache: freecache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *freecacheBlobs) Delete(_ context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

func (c *freecacheBlobs) Close() error {
	c.cache.Clear()
	return nil
}
