package filecache

import (
	"bytes"
	"encoding/gob"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/sandrolain/httpengine"
)

// database is the Cache Database (A): one gob-encoded Metadata row per
// cache key, persisted in an embedded goleveldb instance. goleveldb is
// the ordered, crash-safe embedded KV store the pack actually carries
// (grounded on the teacher's leveldbcache.Cache) — see DESIGN.md for why
// no sqlite driver is introduced in its place.
type database struct {
	db *leveldb.DB
}

func openDatabase(path string) (*database, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &database{db: db}, nil
}

func (d *database) get(key string) (httpengine.Metadata, bool, error) {
	raw, err := d.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return httpengine.Metadata{}, false, nil
	}
	if err != nil {
		return httpengine.Metadata{}, false, err
	}
	var meta httpengine.Metadata
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&meta); err != nil {
		return httpengine.Metadata{}, false, err
	}
	return meta, true, nil
}

func (d *database) put(key string, meta httpengine.Metadata) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return err
	}
	return d.db.Put([]byte(key), buf.Bytes(), nil)
}

func (d *database) touchLastAccessed(key string, now int64) error {
	meta, ok, err := d.get(key)
	if err != nil {
		return err
	}
	if !ok {
		return leveldb.ErrNotFound
	}
	meta.LastAccessedSec = now
	return d.put(key, meta)
}

func (d *database) delete(key string) error {
	return d.db.Delete([]byte(key), nil)
}

// enumerate calls fn for every row in whatever order goleveldb's
// iterator returns. The source accepts this order as-is, so the LRU
// order built from it is not reconstructed across restarts (§9 Open
// Questions) — preserved here rather than second-guessed with an
// artificial sort.
func (d *database) enumerate(fn func(key string, meta httpengine.Metadata)) error {
	iter := d.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var meta httpengine.Metadata
		if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&meta); err != nil {
			continue // corrupt row: treated as absent, swept during init
		}
		fn(string(iter.Key()), meta)
	}
	return iter.Error()
}

func (d *database) close() error {
	return d.db.Close()
}
