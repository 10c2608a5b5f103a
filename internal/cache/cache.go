package cache

import (
	"container/list"
	"sync"
	"time"
)

// SetOptions controls the lifetime of a single entry.
type SetOptions struct {
	// TTL is the time before the entry lazily expires. Zero means no expiry.
	TTL time.Duration
	// Size is the declared cost of the entry against the cache capacity.
	// Zero means 1.
	Size uint64
	// OnDelete is invoked exactly once when the entry is evicted, expired,
	// replaced or explicitly deleted. The cache stores references, not the
	// resources behind them; OnDelete is how cleanup is delegated back to
	// whoever created the resource.
	OnDelete func(value any)
}

type entry struct {
	key       string
	value     any
	size      uint64
	expiresAt time.Time // zero means no expiry
	onDelete  func(value any)
}

// Cache is a process-wide store of opaque values with a capacity budget.
// When the total declared size exceeds the capacity, the oldest-inserted
// entries are evicted first. It is value-agnostic: a pending result standing
// in for data that is still being fetched is cached like any other value.
type Cache struct {
	mutex          sync.Mutex
	capacity       uint64
	usedSize       uint64
	entries        map[string]*list.Element
	insertionOrder *list.List // oldest at the front

	nowFunc func() time.Time
}

type Option func(*Cache)

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

func New(capacity uint64, options ...Option) *Cache {
	cache := &Cache{
		capacity:       capacity,
		entries:        make(map[string]*list.Element),
		insertionOrder: list.New(),
		nowFunc:        time.Now,
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

// Get returns the value for key, or false if the key is unknown or its TTL
// has expired. An expired entry is removed, and its OnDelete invoked, on the
// call that discovers the expiry. Get never blocks.
func (c *Cache) Get(key string) (any, bool) {
	c.mutex.Lock()

	element, ok := c.entries[key]
	if !ok {
		c.mutex.Unlock()
		return nil, false
	}

	ent := element.Value.(*entry)
	if !ent.expiresAt.IsZero() && !c.nowFunc().Before(ent.expiresAt) {
		c.removeLocked(element)
		c.mutex.Unlock()

		if ent.onDelete != nil {
			ent.onDelete(ent.value)
		}
		return nil, false
	}

	value := ent.value
	c.mutex.Unlock()
	return value, true
}

// Set stores value under key. Replacing an existing key invokes the previous
// entry's OnDelete exactly once, synchronously, before Set returns. If the
// insertion pushes the cache over its capacity, the oldest-inserted entries
// are evicted until the cache is back under budget; the entry being inserted
// is never its own victim, so a single oversized entry may exceed the budget
// on its own.
func (c *Cache) Set(key string, value any, options SetOptions) {
	size := options.Size
	if size == 0 {
		size = 1
	}

	var expiresAt time.Time
	c.mutex.Lock()
	if options.TTL > 0 {
		expiresAt = c.nowFunc().Add(options.TTL)
	}

	var deleted []*entry

	if element, ok := c.entries[key]; ok {
		deleted = append(deleted, element.Value.(*entry))
		c.removeLocked(element)
	}

	ent := &entry{
		key:       key,
		value:     value,
		size:      size,
		expiresAt: expiresAt,
		onDelete:  options.OnDelete,
	}
	c.entries[key] = c.insertionOrder.PushBack(ent)
	c.usedSize += size

	for c.usedSize > c.capacity && c.insertionOrder.Len() > 1 {
		oldest := c.insertionOrder.Front()
		deleted = append(deleted, oldest.Value.(*entry))
		c.removeLocked(oldest)
	}
	c.mutex.Unlock()

	for _, deletedEntry := range deleted {
		if deletedEntry.onDelete != nil {
			deletedEntry.onDelete(deletedEntry.value)
		}
	}
}

// Delete removes key, invoking its OnDelete, and reports whether an entry
// was present.
func (c *Cache) Delete(key string) bool {
	c.mutex.Lock()

	element, ok := c.entries[key]
	if !ok {
		c.mutex.Unlock()
		return false
	}

	ent := element.Value.(*entry)
	c.removeLocked(element)
	c.mutex.Unlock()

	if ent.onDelete != nil {
		ent.onDelete(ent.value)
	}
	return true
}

// Clear evicts every entry, invoking every OnDelete.
func (c *Cache) Clear() {
	c.mutex.Lock()

	deleted := make([]*entry, 0, len(c.entries))
	for element := c.insertionOrder.Front(); element != nil; element = element.Next() {
		deleted = append(deleted, element.Value.(*entry))
	}
	c.entries = make(map[string]*list.Element)
	c.insertionOrder.Init()
	c.usedSize = 0
	c.mutex.Unlock()

	for _, deletedEntry := range deleted {
		if deletedEntry.onDelete != nil {
			deletedEntry.onDelete(deletedEntry.value)
		}
	}
}

func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

// UsedSize returns the total declared size of the live entries.
func (c *Cache) UsedSize() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.usedSize
}

func (c *Cache) removeLocked(element *list.Element) {
	ent := element.Value.(*entry)
	c.insertionOrder.Remove(element)
	delete(c.entries, ent.key)
	c.usedSize -= ent.size
}

// GetAs looks up key and type-asserts the value to T.
func GetAs[T any](c *Cache, key string) (T, bool) {
	value, ok := c.Get(key)
	if !ok {
		var empty T
		return empty, false
	}

	typed, ok := value.(T)
	if !ok {
		var empty T
		return empty, false
	}
	return typed, true
}
