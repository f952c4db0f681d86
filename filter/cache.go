package filter

import (
	"container/list"
	"sync"
)

// lruCache keeps the most recently compiled filters by expression
type lruCache struct {
	size      int
	evictList *list.List
	items     map[string]*list.Element
	mu        sync.Mutex
}

type entry struct {
	expression string
	filter     *exprFilter
}

func newLRUCache(size int) *lruCache {
	return &lruCache{
		size:      size,
		evictList: list.New(),
		items:     make(map[string]*list.Element),
	}
}

// Get returns the cached filter and marks it most recently used
func (c *lruCache) Get(expression string) (*exprFilter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[expression]
	if !ok {
		return nil, false
	}
	c.evictList.MoveToFront(node)
	return node.Value.(*entry).filter, true
}

// Put adds or replaces a filter, evicting the least recently used one when full
func (c *lruCache) Put(expression string, f *exprFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[expression]; ok {
		c.evictList.MoveToFront(node)
		node.Value.(*entry).filter = f
		return
	}

	c.items[expression] = c.evictList.PushFront(&entry{expression: expression, filter: f})
	if c.evictList.Len() > c.size {
		c.removeOldest()
	}
}

func (c *lruCache) removeOldest() {
	node := c.evictList.Back()
	if node == nil {
		return
	}
	c.evictList.Remove(node)
	delete(c.items, node.Value.(*entry).expression)
}

// Clear removes all items from the cache
func (c *lruCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Size returns the number of items in the cache
func (c *lruCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictList.Len()
}
