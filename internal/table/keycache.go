package table

import (
	"hash/fnv"
	"sync"

	"github.com/openledger/statetable/internal/model"
)

// defaultCacheShards is used when no shard count is configured
const defaultCacheShards = 16

// keyCache is a lock-striped map from row key to its cached entries. A slot
// holding nil is a tombstone: the key was loaded once and later invalidated
// by rollback, so the next read must go back to the remote store. Tombstones
// are kept rather than erased so that concurrent lookups never observe a key
// flickering between absent and present.
type keyCache struct {
	shards []*cacheShard
}

type cacheShard struct {
	slots map[string]*model.Entries
	mu    sync.RWMutex
}

// newKeyCache creates a cache with the given shard count
func newKeyCache(shardCount int) *keyCache {
	if shardCount <= 0 {
		shardCount = defaultCacheShards
	}
	c := &keyCache{shards: make([]*cacheShard, shardCount)}
	for i := range c.shards {
		c.shards[i] = &cacheShard{slots: make(map[string]*model.Entries)}
	}
	return c
}

func (c *keyCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Load returns the slot for the key. ok reports whether the slot exists at
// all; a (nil, true) result is a tombstone.
func (c *keyCache) Load(key string) (*model.Entries, bool) {
	s := c.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.slots[key]
	return entries, ok
}

// LoadOrStore inserts entries under the key unless a live slot already
// exists, and returns the slot's occupant. The first inserter wins; a
// tombstone is not a winner and is overwritten.
func (c *keyCache) LoadOrStore(key string, entries *model.Entries) *model.Entries {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.slots[key]; ok && existing != nil {
		return existing
	}
	s.slots[key] = entries
	return entries
}

// Store sets the slot unconditionally. Storing nil writes a tombstone.
func (c *keyCache) Store(key string, entries *model.Entries) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = entries
}

// Range calls fn for every slot, tombstones included, until fn returns false.
// Iteration across shards is not atomic; callers run it at quiescent points.
func (c *keyCache) Range(fn func(key string, entries *model.Entries) bool) {
	for _, s := range c.shards {
		s.mu.RLock()
		for key, entries := range s.slots {
			if !fn(key, entries) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Len returns the total number of slots, tombstones included
func (c *keyCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.slots)
		s.mu.RUnlock()
	}
	return n
}

// Clear empties every shard
func (c *keyCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.slots = make(map[string]*model.Entries)
		s.mu.Unlock()
	}
}
