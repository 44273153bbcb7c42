package filecache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv"
)

// bodyStore is the body-file directory: one file per cache key, rooted
// at <user_path>/cache/, grounded on the teacher's diskcache.Cache. Its
// own CacheSizeMax is left at zero (unbounded): the LRU Strategy (B)
// owns the single byte budget invariant, not diskv's independent
// in-memory accounting, so the two are never allowed to disagree about
// how much is cached.
type bodyStore struct {
	d       *diskv.Diskv
	tempDir string
}

func newBodyStore(root string) (*bodyStore, error) {
	tempDir := filepath.Join(root, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, err
	}
	d := diskv.New(diskv.Options{
		BasePath:     root,
		CacheSizeMax: 0,
	})
	return &bodyStore{d: d, tempDir: tempDir}, nil
}

// write commits data under filename. The diskv store is built without a
// TempDir, so diskv.WriteStream writes the final file in place; there is
// no temp-file-then-rename step, and a write cut short leaves a partial
// file under the final name.
func (b *bodyStore) write(filename string, data []byte) error {
	return b.d.WriteStream(filename, bytes.NewReader(data), true)
}

// openStream opens filename for a forward-only read, matching §3's
// "opened for read as a forward-only byte stream".
func (b *bodyStore) openStream(filename string) (io.ReadCloser, error) {
	return b.d.ReadStream(filename, false)
}

func (b *bodyStore) has(filename string) bool {
	return b.d.Has(filename)
}

func (b *bodyStore) delete(filename string) error {
	if !b.d.Has(filename) {
		return nil
	}
	return b.d.Erase(filename)
}

// removeAll deletes the entire cache directory, used by purge(true).
func (b *bodyStore) removeAll(root string) error {
	return os.RemoveAll(root)
}
