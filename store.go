package httpengine

import (
	"context"
	"io"
)

// Store is what the Engine (H) consults for cached entries. The Two-Tier
// Cache Manager (D) and the File Cache (A/B/C) both satisfy it; the
// Engine is written against this interface so it never imports either
// concrete package, keeping the dependency direction storage -> engine
// rather than the reverse. A nil Store passed to NewEngine is valid and
// means "no cache configured" (§4.5): the Engine skips cache consult and
// classification and always goes straight to the network.
type Store interface {
	// GetMetadata returns the stored Metadata for key, or ok=false if
	// there is no entry.
	GetMetadata(ctx context.Context, key string) (meta Metadata, ok bool, err error)
	// GetBody opens the cached body for key. Callers must Close it.
	GetBody(ctx context.Context, key string) (io.ReadCloser, error)
	// Put stores meta and body under key, replacing any prior entry.
	Put(ctx context.Context, key string, meta Metadata, body []byte) error
	// Remove deletes the entry for key, if any.
	Remove(ctx context.Context, key string) error
}
