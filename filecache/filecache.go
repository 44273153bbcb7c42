// Package filecache implements the File Cache (C): a durable
// key→(metadata, body) store composing a Cache Database (A, db.go) with
// an LRU Strategy (B, lru.go) over a body-file directory (body.go),
// bounded by a single byte budget and serialised by one mutex, per
// spec §4.2.
package filecache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandrolain/httpengine"
)

// FileCache is the File Cache (C). It satisfies httpengine.Store so an
// Engine can use it directly, and exposes the richer ref-counted
// operations (GetBody/ReleaseData/Purge) the spec's File Cache contract
// needs beyond what Store requires.
type FileCache struct {
	mu sync.Mutex

	root     string
	cacheDir string
	db       *database
	bodies   *bodyStore
	lru      *lruStrategy
	maxSize  int64
	codec    Codec
	now      func() time.Time
	closed   bool
}

var _ httpengine.Store = (*FileCache)(nil)
var _ evictionListener = (*FileCache)(nil)

// Open creates (if absent) the cache directory layout under root
// (<root>/cache/{db,<key>.data,temp/}, per §6), enumerates the metadata
// database to rebuild the LRU index, and returns a ready FileCache
// bounded at maxSize bytes. Rows whose body file is missing or whose
// declared size no longer fits are dropped during enumeration (§4.2
// step 2); any such drop leaves the cache in the same state as if the
// entry had never existed.
func Open(root string, maxSize int64, opts ...Option) (*FileCache, error) {
	cacheDir := filepath.Join(root, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, wrapExecution(err)
	}
	db, err := openDatabase(filepath.Join(cacheDir, "db"))
	if err != nil {
		return nil, wrapExecution(err)
	}
	bodies, err := newBodyStore(cacheDir)
	if err != nil {
		db.close()
		return nil, wrapExecution(err)
	}

	fc := &FileCache{
		root:     root,
		cacheDir: cacheDir,
		db:       db,
		bodies:   bodies,
		maxSize:  maxSize,
		codec:    NoopCodec,
		now:      time.Now,
	}
	fc.lru = newLRUStrategy(maxSize, fc)

	for _, opt := range opts {
		if err := opt(fc); err != nil {
			db.close()
			return nil, err
		}
	}

	if err := fc.loadFromDatabase(); err != nil {
		db.close()
		return nil, wrapExecution(err)
	}
	return fc, nil
}

func (fc *FileCache) loadFromDatabase() error {
	return fc.db.enumerate(func(key string, meta httpengine.Metadata) {
		filename := bodyFilename(key)
		if !fc.bodies.has(filename) {
			fc.db.delete(key)
			return
		}
		if meta.BodySize > fc.maxSize || !fc.lru.reserve(meta.BodySize) {
			fc.db.delete(key)
			fc.bodies.delete(filename)
			return
		}
		fc.lru.insert(key, meta.BodySize)
	})
}

func bodyFilename(key string) string {
	return httpengine.HashKey(key) + ".data"
}

func wrapExecution(cause error) error {
	return &httpengine.Error{Kind: httpengine.KindExecution, Code: httpengine.CodeExecution, Message: "file cache operation failed", Cause: cause}
}

// GetMetadata implements §4.2 get_metadata: fails (ok=false) if key is
// absent or pending_delete, otherwise advances last-accessed and moves
// key to the MRU end.
func (fc *FileCache) GetMetadata(_ context.Context, key string) (httpengine.Metadata, bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.closed {
		return httpengine.Metadata{}, false, nil
	}
	info, ok := fc.lru.get(key)
	if !ok || info.pendingDelete {
		return httpengine.Metadata{}, false, nil
	}
	meta, ok, err := fc.db.get(key)
	if err != nil {
		return httpengine.Metadata{}, false, wrapExecution(err)
	}
	if !ok {
		return httpengine.Metadata{}, false, nil
	}

	now := fc.now().Unix()
	if err := fc.db.touchLastAccessed(key, now); err != nil {
		return httpengine.Metadata{}, false, wrapExecution(err)
	}
	meta.LastAccessedSec = now
	fc.lru.touch(key)
	return meta, true, nil
}

// GetBody implements §4.2 get_data: opens the body file, increments the
// entry's ref_count and moves it to MRU. The returned ReadCloser's
// Close releases that reference exactly once; callers must not call
// ReleaseData separately for a stream obtained this way.
func (fc *FileCache) GetBody(_ context.Context, key string) (io.ReadCloser, error) {
	fc.mu.Lock()
	if fc.closed {
		fc.mu.Unlock()
		return nil, wrapExecution(os.ErrClosed)
	}
	info, ok := fc.lru.get(key)
	if !ok || info.pendingDelete {
		fc.mu.Unlock()
		return nil, wrapExecution(os.ErrNotExist)
	}
	stream, err := fc.bodies.openStream(bodyFilename(key))
	if err != nil {
		fc.mu.Unlock()
		return nil, wrapExecution(err)
	}
	info.refCount++
	fc.lru.touch(key)
	fc.mu.Unlock()

	raw, err := io.ReadAll(stream)
	stream.Close()
	if err != nil {
		fc.ReleaseData(key)
		return nil, wrapExecution(err)
	}
	data, err := fc.codec.Decode(raw)
	if err != nil {
		fc.ReleaseData(key)
		return nil, wrapExecution(err)
	}
	return &releasingBody{Reader: bytes.NewReader(data), fc: fc, key: key}, nil
}

// releasingBody wraps a decoded body buffer so that closing it performs
// exactly one release_data call, matching the reference-counted body
// stream contract of §3/§4.2.
type releasingBody struct {
	*bytes.Reader
	fc     *FileCache
	key    string
	closed bool
}

func (r *releasingBody) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.fc.ReleaseData(r.key)
	return nil
}

// Get implements the combined get_metadata+get_data under one lock
// acquisition (§4.2 get = get_metadata + get_data atomically).
func (fc *FileCache) Get(ctx context.Context, key string) (httpengine.Metadata, io.ReadCloser, bool, error) {
	fc.mu.Lock()
	if fc.closed {
		fc.mu.Unlock()
		return httpengine.Metadata{}, nil, false, nil
	}
	info, ok := fc.lru.get(key)
	if !ok || info.pendingDelete {
		fc.mu.Unlock()
		return httpengine.Metadata{}, nil, false, nil
	}
	fc.mu.Unlock()

	meta, ok, err := fc.GetMetadata(ctx, key)
	if err != nil || !ok {
		return httpengine.Metadata{}, nil, false, err
	}
	body, err := fc.GetBody(ctx, key)
	if err != nil {
		return httpengine.Metadata{}, nil, false, err
	}
	return meta, body, true, nil
}

// Put implements §4.2 put: an in-use or pending_delete entry at key
// rejects the write outright; an idle entry is replaced; the LRU
// Strategy must be able to reserve room for the (pre-codec) body size
// before anything is written, matching spec.md's byte-size invariant,
// which is computed on the declared response body size rather than
// whatever a body codec makes it occupy on disk.
func (fc *FileCache) Put(_ context.Context, key string, meta httpengine.Metadata, body []byte) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.closed {
		return wrapExecution(os.ErrClosed)
	}

	filename := bodyFilename(key)
	if info, ok := fc.lru.get(key); ok {
		if info.refCount > 0 || info.pendingDelete {
			return &httpengine.Error{Kind: httpengine.KindIllegalState, Code: httpengine.CodeIllegalState, Message: "file cache: entry busy for key " + key}
		}
		fc.db.delete(key)
		fc.bodies.delete(filename)
		fc.lru.remove(key)
	}

	if !fc.lru.reserve(int64(len(body))) {
		return &httpengine.Error{Kind: httpengine.KindExecution, Code: httpengine.CodeExecution, Message: "file cache: insufficient space for key " + key}
	}

	encoded, err := fc.codec.Encode(body)
	if err != nil {
		return wrapExecution(err)
	}
	if err := fc.bodies.write(filename, encoded); err != nil {
		return wrapExecution(err)
	}

	meta.Key = key
	meta.BodySize = int64(len(body))
	if err := fc.db.put(key, meta); err != nil {
		fc.bodies.delete(filename)
		return wrapExecution(err)
	}

	fc.lru.insert(key, int64(len(body)))
	return nil
}

// Remove implements §4.2 remove: an idle entry is deleted immediately;
// an in-use entry is marked pending_delete and completes the deletion
// on its last ReleaseData; an absent key is a no-op.
func (fc *FileCache) Remove(_ context.Context, key string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	info, ok := fc.lru.get(key)
	if !ok {
		return nil
	}
	if info.refCount > 0 {
		info.pendingDelete = true
		return nil
	}
	fc.lru.remove(key)
	fc.db.delete(key)
	fc.bodies.delete(bodyFilename(key))
	return nil
}

// ReleaseData implements §4.2 release_data: decrements ref_count (floor
// zero) and, if it reaches zero with pending_delete set, completes the
// deferred deletion.
func (fc *FileCache) ReleaseData(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.releaseDataLocked(key)
}

func (fc *FileCache) releaseDataLocked(key string) {
	info, ok := fc.lru.get(key)
	if !ok {
		return
	}
	if info.refCount > 0 {
		info.refCount--
	}
	if info.refCount == 0 && info.pendingDelete {
		fc.lru.remove(key)
		fc.db.delete(key)
		fc.bodies.delete(bodyFilename(key))
	}
}

// onEvicted satisfies evictionListener: the LRU Strategy calls this
// synchronously when it evicts an entry to make room: under fc.mu when a
// Put triggered the reservation, or during Open's database enumeration,
// before the FileCache has been returned to any caller.
func (fc *FileCache) onEvicted(key string) {
	if err := fc.db.delete(key); err != nil {
		httpengine.GetLogger().Warn("file cache: failed to delete evicted row", "key", key, "error", err)
	}
	if err := fc.bodies.delete(bodyFilename(key)); err != nil {
		httpengine.GetLogger().Warn("file cache: failed to delete evicted body file", "key", key, "error", err)
	}
}

// Purge implements §4.2 purge. With mayDeleteIfBusy=false, in-use
// entries are left fully intact and every other entry is removed; the
// return reports whether every entry could be purged. With
// mayDeleteIfBusy=true, everything is removed unconditionally, the
// database file and body directory are dropped, and the cache
// immediately reopens empty (so it remains usable without a process
// restart, even though §6 only requires this of "the next cache
// operation").
func (fc *FileCache) Purge(mayDeleteIfBusy bool) (bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if !mayDeleteIfBusy {
		clean := true
		for _, key := range fc.lru.keysOldestFirst() {
			info, ok := fc.lru.get(key)
			if !ok {
				continue
			}
			if info.refCount > 0 {
				clean = false
				continue
			}
			fc.lru.remove(key)
			fc.db.delete(key)
			fc.bodies.delete(bodyFilename(key))
		}
		return clean, nil
	}

	for _, key := range fc.lru.keysOldestFirst() {
		fc.lru.remove(key)
	}
	fc.db.close()
	if err := fc.bodies.removeAll(fc.cacheDir); err != nil {
		fc.closed = true
		return true, wrapExecution(err)
	}

	if err := os.MkdirAll(fc.cacheDir, 0o755); err != nil {
		fc.closed = true
		return true, wrapExecution(err)
	}
	db, err := openDatabase(filepath.Join(fc.cacheDir, "db"))
	if err != nil {
		fc.closed = true
		return true, wrapExecution(err)
	}
	bodies, err := newBodyStore(fc.cacheDir)
	if err != nil {
		db.close()
		fc.closed = true
		return true, wrapExecution(err)
	}
	fc.db = db
	fc.bodies = bodies
	fc.lru = newLRUStrategy(fc.maxSize, fc)
	return true, nil
}

// Close releases the underlying database handle. The cache is unusable
// afterward; construct a new FileCache via Open to reuse the directory.
func (fc *FileCache) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.closed = true
	return fc.db.close()
}

// Size reports the current total of reserved body bytes, for tests and
// metrics instrumentation.
func (fc *FileCache) Size() int64 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.lru.total
}
