package tiercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// natsBlobs adapts the teacher's natskv.Cache to Blobs, backed by a NATS
// JetStream Key/Value bucket.
type natsBlobs struct {
	kv jetstream.KeyValue
	nc *nats.Conn
}

func natsKey(key string) string {
	return "httpengine." + key
}

// NATSConfig configures the natskv-backed Blobs tier.
type NATSConfig struct {
	URL         string
	Bucket      string
	Description string
	TTL         time.Duration
	NATSOptions []nats.Option
}

// NewNATSKV connects to a NATS server, creates or updates the configured
// K/V bucket, and returns a Blobs tier backed by it.
func NewNATSKV(ctx context.Context, config NATSConfig) (Blobs, error) {
	if config.Bucket == "" {
		return nil, errors.New("tiercache: nats bucket name is required")
	}
	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, config.NATSOptions...)
	if err != nil {
		return nil, fmt.Errorf("tiercache: failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("tiercache: failed to create JetStream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: config.Description,
		TTL:         config.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("tiercache: failed to create or update K/V bucket: %w", err)
	}
	return &natsBlobs{kv: kv, nc: nc}, nil
}

// NewNATSKVWithBucket wraps an already-open K/V bucket. The caller keeps
// ownership of the NATS connection; Close is a no-op.
func NewNATSKVWithBucket(kv jetstream.KeyValue) Blobs {
	return &natsBlobs{kv: kv}
}

func (c *natsBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: nats kv get failed for key %q: %w", key, err)
	}
	return entry.Value(), true, nil
}

func (c *natsBlobs) Set(ctx context.Context, key string, data []byte) error {
	if _, err := c.kv.Put(ctx, natsKey(key), data); err != nil {
		return fmt.Errorf("tiercache: nats kv set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *natsBlobs) Delete(ctx context.Context, key string) error {
	if err := c.kv.Delete(ctx, natsKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("tiercache: nats kv delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *natsBlobs) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
