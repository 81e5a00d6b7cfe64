// Package cache provides the sharded concurrent index a histcache collection
// stores its aggregates in.
//
// Keys are spread over ShardCount shards by the xxhash of their string form,
// each shard guarded by its own read-write mutex. The owner of a collection
// writes through GetOrInsert while introspection readers (management server,
// size estimation) only take read locks on one shard at a time.
package cache

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ShardCount is the number of shards.
const ShardCount = 32

// Stringer is the interface implemented by keys of the map.
type Stringer interface {
	fmt.Stringer
	comparable
}

// ConcurrentMap is a "thread" safe map of type K:V.
// To avoid lock bottlenecks this map is divided into several (ShardCount) map shards.
type ConcurrentMap[K Stringer, V any] struct {
	shards []*ConcurrentMapShared[K, V]
}

// ConcurrentMapShared is a "thread" safe K to V map shard.
type ConcurrentMapShared[K Stringer, V any] struct {
	sync.RWMutex // Read Write mutex, guards access to internal map.

	items map[K]V
}

// New creates a new concurrent map.
func New[K Stringer, V any]() ConcurrentMap[K, V] {
	cmap := ConcurrentMap[K, V]{
		shards: make([]*ConcurrentMapShared[K, V], ShardCount),
	}
	for i := range ShardCount {
		cmap.shards[i] = &ConcurrentMapShared[K, V]{items: make(map[K]V)}
	}

	return cmap
}

// GetShard returns shard under given key.
func (m ConcurrentMap[K, V]) GetShard(key K) *ConcurrentMapShared[K, V] {
	return m.shards[xxhash.Sum64String(key.String())%ShardCount]
}

// Set sets the given value under the specified key.
func (m ConcurrentMap[K, V]) Set(key K, value V) {
	shard := m.GetShard(key)
	shard.Lock()

	shard.items[key] = value
	shard.Unlock()
}

// SetIfAbsent sets the given value under the specified key if no value was associated with it.
func (m ConcurrentMap[K, V]) SetIfAbsent(key K, value V) bool {
	shard := m.GetShard(key)
	shard.Lock()

	_, ok := shard.items[key]
	if !ok {
		shard.items[key] = value
	}

	shard.Unlock()

	return !ok
}

// BuildCb builds the value inserted by GetOrInsert. It is called while the
// shard lock is held, therefore it MUST NOT access the same map.
type BuildCb[V any] func() (V, error)

// GetOrInsert returns the value under key, building and inserting it with
// build when absent. created reports whether build ran and succeeded. When
// build fails nothing is inserted and its error is returned.
func (m ConcurrentMap[K, V]) GetOrInsert(key K, build BuildCb[V]) (value V, created bool, err error) {
	shard := m.GetShard(key)

	shard.RLock()
	value, ok := shard.items[key]
	shard.RUnlock()

	if ok {
		return value, false, nil
	}

	shard.Lock()
	defer shard.Unlock()

	// another writer may have won the race between the two locks
	value, ok = shard.items[key]
	if ok {
		return value, false, nil
	}

	value, err = build()
	if err != nil {
		var zero V

		return zero, false, err
	}

	shard.items[key] = value

	return value, true, nil
}

// Get retrieves an element from map under given key.
func (m ConcurrentMap[K, V]) Get(key K) (V, bool) {
	shard := m.GetShard(key)
	shard.RLock()

	val, ok := shard.items[key]
	shard.RUnlock()

	return val, ok
}

// Has checks if key is present in the map.
func (m ConcurrentMap[K, V]) Has(key K) bool {
	_, ok := m.Get(key)

	return ok
}

// Count returns the number of elements within the map.
func (m ConcurrentMap[K, V]) Count() int {
	count := 0

	for _, shard := range m.shards {
		shard.RLock()

		count += len(shard.items)
		shard.RUnlock()
	}

	return count
}

// IterCb is the iterator callback for every key, value found in the map.
// RLock is held for all calls for a given shard, therefore the callback sees a
// consistent view of a shard, but not across the shards.
type IterCb[K Stringer, V any] func(key K, v V)

// IterCb is a callback based iterator, cheapest way to read all elements in a map.
func (m ConcurrentMap[K, V]) IterCb(fn IterCb[K, V]) {
	for _, shard := range m.shards {
		shard.RLock()

		for key, value := range shard.items {
			fn(key, value)
		}

		shard.RUnlock()
	}
}

// Keys returns all keys.
func (m ConcurrentMap[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())

	m.IterCb(func(key K, _ V) {
		keys = append(keys, key)
	})

	return keys
}

// Items returns all items as a plain map.
func (m ConcurrentMap[K, V]) Items() map[K]V {
	tmp := make(map[K]V, m.Count())

	m.IterCb(func(key K, v V) {
		tmp[key] = v
	})

	return tmp
}

// Clear removes all items from the map.
func (m ConcurrentMap[K, V]) Clear() {
	for _, shard := range m.shards {
		shard.Lock()

		shard.items = make(map[K]V)
		shard.Unlock()
	}
}

// Remove deletes key from the map and reports whether it was present.
func (m ConcurrentMap[K, V]) Remove(key K) bool {
	shard := m.GetShard(key)
	shard.Lock()
	defer shard.Unlock()

	_, ok := shard.items[key]
	delete(shard.items, key)

	return ok
}
