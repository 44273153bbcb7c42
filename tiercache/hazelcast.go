package tiercache

import (
	"context"
	"fmt"

	"github.com/hazelcast/hazelcast-go-client"
)

// hazelcastBlobs adapts the teacher's hazelcast.Cache to Blobs, storing
// raw bytes in a distributed Map.
type hazelcastBlobs struct {
	client *hazelcast.Client
	m      *hazelcast.Map
}

func hazelcastKey(key string) string {
	return "httpengine:" + key
}

// NewHazelcast connects to a Hazelcast cluster using config and returns
// a Blobs tier backed by the named distributed map. The caller should
// Close it when done.
func NewHazelcast(ctx context.Context, config hazelcast.Config, mapName string) (Blobs, error) {
	client, err := hazelcast.StartNewClientWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("tiercache: failed to connect to hazelcast: %w", err)
	}
	m, err := client.GetMap(ctx, mapName)
	if err != nil {
		client.Shutdown(ctx)
		return nil, fmt.Errorf("tiercache: failed to open hazelcast map %q: %w", mapName, err)
	}
	return &hazelcastBlobs{client: client, m: m}, nil
}

// NewHazelcastWithMap wraps an already-open Hazelcast map.
func NewHazelcastWithMap(m *hazelcast.Map) Blobs {
	return &hazelcastBlobs{m: m}
}

func (c *hazelcastBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.m.Get(ctx, hazelcastKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("tiercache: hazelcast get failed for key %q: %w", key, err)
	}
	if val == nil {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (c *hazelcastBlobs) Set(ctx context.Context, key string, data []byte) error {
	if err := c.m.Set(ctx, hazelcastKey(key), data); err != nil {
		return fmt.Errorf("tiercache: hazelcast set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *hazelcastBlobs) Delete(ctx context.Context, key string) error {
	if _, err := c.m.Remove(ctx, hazelcastKey(key)); err != nil {
		return fmt.Errorf("tiercache: hazelcast delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *hazelcastBlobs) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Shutdown(context.Background())
}
