package filecache

import "container/list"

// cacheInfo is the in-memory LRU node (§3 CacheInfo). ref_count > 0 means
// at least one caller holds an open body stream; pending_delete is sticky
// once set by a remove() that raced an in-use entry. Mapped as a plain
// owned value rather than a reference-counted pointer, per DESIGN.md's
// owned/shared split: the list.Element holding it is the only handle
// that outlives a single File Cache call.
type cacheInfo struct {
	key           string
	size          int64
	refCount      int
	pendingDelete bool
}

// evictionListener is notified synchronously, under the File Cache's
// mutex, whenever the LRU Strategy evicts an entry on its own initiative
// (reserve() freeing room). The File Cache is the only implementation:
// it deletes the entry's body file and database row in response.
type evictionListener interface {
	onEvicted(key string)
}

// lruStrategy is the LRU Strategy (B): an ordered index of cacheInfo
// nodes bounded by a byte budget, most-recently-used at the back of the
// list. It has no lock of its own — every method assumes the caller
// already holds the File Cache's mutex, matching §5's "File Cache holds
// its own mutex for every operation" (the LRU strategy is not a
// separately-lockable component in this design).
type lruStrategy struct {
	order    *list.List // of *cacheInfo; LRU at Front, MRU at Back
	byKey    map[string]*list.Element
	total    int64
	maxSize  int64
	listener evictionListener
}

func newLRUStrategy(maxSize int64, listener evictionListener) *lruStrategy {
	return &lruStrategy{
		order:    list.New(),
		byKey:    map[string]*list.Element{},
		maxSize:  maxSize,
		listener: listener,
	}
}

func (l *lruStrategy) get(key string) (*cacheInfo, bool) {
	el, ok := l.byKey[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheInfo), true
}

// touch moves key to the MRU end. No-op if key is absent.
func (l *lruStrategy) touch(key string) {
	if el, ok := l.byKey[key]; ok {
		l.order.MoveToBack(el)
	}
}

// reserve implements the LRU Strategy's contract (§4.2): walk LRU→MRU
// summing the size of releasable (ref_count==0, not pending_delete)
// entries until evicting exactly that prefix would bring the total to
// current_total + needed <= max_size, then evict them. Returns false,
// changing nothing, if no such prefix exists — including when needed
// alone exceeds max_size.
func (l *lruStrategy) reserve(needed int64) bool {
	if needed > l.maxSize {
		return false
	}
	if l.total+needed <= l.maxSize {
		return true
	}

	var toEvict []*list.Element
	freed := int64(0)
	for el := l.order.Front(); el != nil; el = el.Next() {
		info := el.Value.(*cacheInfo)
		if info.refCount > 0 || info.pendingDelete {
			continue
		}
		toEvict = append(toEvict, el)
		freed += info.size
		if l.total-freed+needed <= l.maxSize {
			break
		}
	}
	if l.total-freed+needed > l.maxSize {
		return false
	}

	for _, el := range toEvict {
		info := el.Value.(*cacheInfo)
		l.order.Remove(el)
		delete(l.byKey, info.key)
		l.total -= info.size
		if l.listener != nil {
			l.listener.onEvicted(info.key)
		}
	}
	return true
}

// insert adds a fresh, zero-refcount entry at the MRU end. Callers must
// already have reserved its size.
func (l *lruStrategy) insert(key string, size int64) *cacheInfo {
	info := &cacheInfo{key: key, size: size}
	el := l.order.PushBack(info)
	l.byKey[key] = el
	l.total += size
	return info
}

// remove drops key from the index unconditionally, without notifying the
// listener (used once the File Cache itself has already decided the
// deletion and is performing it directly).
func (l *lruStrategy) remove(key string) {
	el, ok := l.byKey[key]
	if !ok {
		return
	}
	info := el.Value.(*cacheInfo)
	l.order.Remove(el)
	delete(l.byKey, key)
	l.total -= info.size
}

// keysOldestFirst returns every key, LRU-first, for enumeration (purge).
func (l *lruStrategy) keysOldestFirst() []string {
	keys := make([]string, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*cacheInfo).key)
	}
	return keys
}
