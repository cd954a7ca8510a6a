package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

// LRUCache bounds entries by count, dropping the least recently used, and
// by age since the last write.
type LRUCache[T any] struct {
	mu      sync.Mutex
	order   *list.List // front is most recent
	index   map[string]*list.Element
	maxSize int
	ttl     time.Duration
	cfg     options
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

// Option configures an LRUCache.
type Option func(*options)

type options struct {
	now     func() time.Time
	onEvict func(key string, reason EvictReason)
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEvictHook calls fn for every entry dropped by capacity or expiry.
// Explicit deletes are not reported. fn runs with the cache locked.
func WithEvictHook(fn func(key string, reason EvictReason)) Option {
	return func(o *options) { o.onEvict = fn }
}

// NewLRUCache holds at most maxSize entries, each for ttl after its last
// write.
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option) *LRUCache[T] {
	cfg := options{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LRUCache[T]{
		order:   list.New(),
		index:   make(map[string]*list.Element),
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		cfg:     cfg,
	}
}

// Get returns the live value for key and marks it most recently used.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if c.expired(e, c.cfg.now()) {
		c.evict(el, EvictExpired)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value and restarts its ttl.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.cfg.now().Add(c.ttl)
	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry[T])
		e.value, e.expires = value, expires
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&entry[T]{key: key, value: value, expires: expires})
	for c.order.Len() > c.maxSize {
		c.evict(c.order.Back(), EvictCapacity)
	}
}

// Delete drops key if present.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
}

// CleanExpired drops every expired entry and returns how many it dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry[T]), now) {
			c.evict(el, EvictExpired)
			n++
		}
		el = prev
	}
	return n
}

// Size returns the number of entries, expired ones included until swept.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[T]) expired(e *entry[T], now time.Time) bool {
	return now.After(e.expires)
}

func (c *LRUCache[T]) evict(el *list.Element, reason EvictReason) {
	key := c.remove(el)
	if c.cfg.onEvict != nil {
		c.cfg.onEvict(key, reason)
	}
}

func (c *LRUCache[T]) remove(el *list.Element) string {
	e := c.order.Remove(el).(*entry[T])
	delete(c.index, e.key)
	return e.key
}
