package tiercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// blobBlobs adapts the teacher's blobcache.Cache to Blobs, using Go
// Cloud's blob.Bucket so the same tier code works unmodified against any
// bucket URL whose gocloud.dev driver is registered. This file
// blank-imports the S3, GCS, in-memory (tests) and local filesystem
// drivers; other providers, such as Azure Blob Storage, need their
// driver blank-imported by the caller.
type blobBlobs struct {
	bucket     *blob.Bucket
	keyPrefix  string
	timeout    time.Duration
	ownsBucket bool
}

// BlobConfig configures the blob-storage-backed Blobs tier.
type BlobConfig struct {
	BucketURL string
	KeyPrefix string
	Timeout   time.Duration
}

func (c BlobConfig) withDefaults() BlobConfig {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "cache/"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// NewBlob opens config.BucketURL (e.g. "s3://bucket?region=us-west-2",
// "gs://bucket", "mem://") and returns a Blobs tier backed by it.
func NewBlob(ctx context.Context, config BlobConfig) (Blobs, error) {
	if config.BucketURL == "" {
		return nil, errors.New("tiercache: blob bucket URL is required")
	}
	config = config.withDefaults()

	bucket, err := blob.OpenBucket(ctx, config.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("tiercache: failed to open bucket: %w", err)
	}
	return &blobBlobs{bucket: bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsBucket: true}, nil
}

// NewBlobWithBucket wraps an already-open bucket. The caller remains
// responsible for closing it; Close is a no-op.
func NewBlobWithBucket(bucket *blob.Bucket, config BlobConfig) Blobs {
	config = config.withDefaults()
	return &blobBlobs{bucket: bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsBucket: false}
}

// blobKey hashes key so cache keys containing characters a given cloud
// provider disallows in object names never reach the bucket directly.
func (c *blobBlobs) blobKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

func (c *blobBlobs) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *blobBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reader, err := c.bucket.NewReader(ctx, c.blobKey(key), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: blob get failed for key %q: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("tiercache: blob read failed for key %q: %w", key, err)
	}
	return data, true, nil
}

func (c *blobBlobs) Set(ctx context.Context, key string, data []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	writer, err := c.bucket.NewWriter(ctx, c.blobKey(key), nil)
	if err != nil {
		return fmt.Errorf("tiercache: blob set failed to open writer for key %q: %w", key, err)
	}
	_, writeErr := writer.Write(data)
	closeErr := writer.Close()
	if writeErr != nil {
		return fmt.Errorf("tiercache: blob set failed to write for key %q: %w", key, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("tiercache: blob set failed to close writer for key %q: %w", key, closeErr)
	}
	return nil
}

func (c *blobBlobs) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.bucket.Delete(ctx, c.blobKey(key))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("tiercache: blob delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *blobBlobs) Close() error {
	if !c.ownsBucket {
		return nil
	}
	return c.bucket.Close()
}
