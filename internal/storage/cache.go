package storage

import (
	"container/list"
	"sync"

	"github.com/kotadb/kotadb/internal/types"
)

// documentCache is a bounded LRU keyed by document ID. Critical sections hold
// only the mutex and swap pointers — no I/O and no copying happens while
// locked, mirroring the pointer-only locking discipline the rest of the
// storage layer follows.
type documentCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[types.DocumentID]*list.Element
}

type cacheEntry struct {
	id  types.DocumentID
	doc *types.Document
}

func newDocumentCache(capacity int) *documentCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &documentCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[types.DocumentID]*list.Element, capacity),
	}
}

func (c *documentCache) get(id types.DocumentID) (*types.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).doc, true
}

func (c *documentCache) put(id types.DocumentID, doc *types.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		el.Value.(*cacheEntry).doc = doc
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{id: id, doc: doc})
	c.items[id] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).id)
	}
}

func (c *documentCache) remove(id types.DocumentID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return
	}
	c.ll.Remove(el)
	delete(c.items, id)
}
