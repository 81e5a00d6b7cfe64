// Package histcache provides a lazily populated cache of mergeable
// statistical aggregates keyed by (identifier, object name).
//
// A Collection materializes aggregates on first request through a catalog
// that maps object names to a kind and a binning. Requests for the same pair
// always return the same *aggregate.Aggregate, which callers fill in place.
// Collections built by independent shards are combined with Merge, which sums
// same-keyed aggregates and refuses to fold the same shard in twice.
//
// A Collection is owned by a single goroutine while it is being filled: the
// index itself is safe for concurrent use, but the aggregates it hands out are
// not synchronized.
package histcache

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/aggregate"
	"github.com/hyp3rd/histcache/pkg/cache"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

const bytesPerMB = 1 << 20

// Key addresses one aggregate of a collection.
type Key struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// String returns the identifier and the name joined by a colon.
func (k Key) String() string {
	return k.Identifier + ":" + k.Name
}

// Collection is the named object cache of a run.
type Collection struct {
	id      string
	name    string
	catalog *catalog.Catalog
	logger  *zap.Logger
	items   cache.ConcurrentMap[Key, *aggregate.Aggregate]

	// mu serializes merges and guards lineage.
	mu      sync.RWMutex
	lineage map[string]struct{}

	size     atomic.Int64 // estimated bytes at creation time of each aggregate
	lookups  atomic.Uint64
	hits     atomic.Uint64
	created  atomic.Uint64
	rejected atomic.Uint64
	merges   atomic.Uint64
}

// New creates an empty collection. Without options it uses the default
// catalog, a no-op logger and a random id.
func New(options ...Option) *Collection {
	c := &Collection{
		id:      uuid.NewString(),
		name:    constants.DefaultCollectionName,
		catalog: catalog.Default(),
		logger:  zap.NewNop(),
		items:   cache.New[Key, *aggregate.Aggregate](),
	}

	ApplyOptions(c, options...)

	c.lineage = map[string]struct{}{c.id: {}}

	return c
}

// ID returns the collection id. It is the lineage entry of the collection itself.
func (c *Collection) ID() string { return c.id }

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Catalog returns the dispatch table of the collection.
func (c *Collection) Catalog() *catalog.Catalog { return c.catalog }

// GetOrCreate returns the aggregate stored under (identifier, name), creating
// it from the catalog on first request. ok is false when the identifier is
// empty or the name is not in the catalog; the error is logged and nothing is
// created.
func (c *Collection) GetOrCreate(identifier, name string) (*aggregate.Aggregate, bool) {
	c.lookups.Add(1)

	if strings.TrimSpace(identifier) == "" {
		c.reject(ewrap.Wrap(sentinel.ErrInvalidIdentifier, "empty identifier"), identifier, name)

		return nil, false
	}

	key := Key{Identifier: identifier, Name: name}

	agg, created, err := c.items.GetOrInsert(key, func() (*aggregate.Aggregate, error) {
		return c.catalog.Build(name)
	})
	if err != nil {
		c.reject(err, identifier, name)

		return nil, false
	}

	if !created {
		c.hits.Add(1)

		return agg, true
	}

	c.created.Add(1)
	size := c.size.Add(int64(agg.SizeBytes()))

	c.logger.Debug("object created",
		zap.String("identifier", identifier),
		zap.String("name", name),
		zap.Stringer("kind", agg.Kind()),
		zap.Float64("size_mb", float64(size)/bytesPerMB),
	)

	return agg, true
}

// Get returns the aggregate under (identifier, name) without creating it.
func (c *Collection) Get(identifier, name string) (*aggregate.Aggregate, bool) {
	return c.items.Get(Key{Identifier: identifier, Name: name})
}

// Count returns the number of aggregates held.
func (c *Collection) Count() int {
	return c.items.Count()
}

// EstimateSize returns the estimated memory held by all aggregates in bytes.
// Sparse aggregates grow with fills, so it must not race with the owner.
func (c *Collection) EstimateSize() int64 {
	var total int64

	c.items.IterCb(func(_ Key, agg *aggregate.Aggregate) {
		total += int64(agg.SizeBytes())
	})

	return total
}

// Keys returns every key, sorted by identifier then name.
func (c *Collection) Keys() []Key {
	keys := c.items.Keys()
	slices.SortFunc(keys, compareKeys)

	return keys
}

// Identifiers returns the distinct identifiers in lexical order.
func (c *Collection) Identifiers() []string {
	seen := make(map[string]struct{})

	c.items.IterCb(func(k Key, _ *aggregate.Aggregate) {
		seen[k.Identifier] = struct{}{}
	})

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}

	slices.Sort(out)

	return out
}

// Lineage returns the ids of every collection folded into this one,
// including its own, in lexical order.
func (c *Collection) Lineage() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.lineage))
	for id := range c.lineage {
		out = append(out, id)
	}

	slices.Sort(out)

	return out
}

// Merge sums other into c. Aggregates present only in other are copied.
//
// The merge is all or nothing: every pair is checked for kind and shape
// compatibility before anything is modified. A collection whose lineage
// overlaps the lineage of c is rejected with sentinel.ErrAlreadyMerged.
// other must not be filled while the merge runs; it is left untouched.
func (c *Collection) Merge(other *Collection) error {
	if other == nil {
		return sentinel.ErrNilCollection
	}

	if other == c {
		return ewrap.Wrap(sentinel.ErrAlreadyMerged, c.id)
	}

	// other's lock is never held together with c's.
	incoming := other.Lineage()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range incoming {
		if _, ok := c.lineage[id]; ok {
			return ewrap.Wrapf(sentinel.ErrAlreadyMerged, "collection %s into %s", id, c.id)
		}
	}

	src := other.items.Items()

	for key, agg := range src {
		dst, ok := c.items.Get(key)
		if !ok {
			continue
		}

		err := dst.Compatible(agg)
		if err != nil {
			return ewrap.Wrapf(err, "merge %s", key)
		}
	}

	for key, agg := range src {
		dst, ok := c.items.Get(key)
		if !ok {
			clone := agg.Clone()
			c.items.Set(key, clone)
			c.size.Add(int64(clone.SizeBytes()))

			continue
		}

		err := dst.Add(agg)
		if err != nil {
			// unreachable after validation; surface it rather than hide a partial merge
			return ewrap.Wrapf(err, "merge %s", key)
		}
	}

	for _, id := range incoming {
		c.lineage[id] = struct{}{}
	}

	c.merges.Add(1)

	c.logger.Debug("collection merged",
		zap.String("into", c.id),
		zap.Strings("lineage", incoming),
		zap.Int("objects", len(src)),
	)

	return nil
}

// Stats returns the counters of the collection.
func (c *Collection) Stats() Stats {
	return Stats{
		ID:        c.id,
		Name:      c.name,
		Objects:   c.items.Count(),
		SizeBytes: c.EstimateSize(),
		Lookups:   c.lookups.Load(),
		Hits:      c.hits.Load(),
		Created:   c.created.Load(),
		Rejected:  c.rejected.Load(),
		Merges:    c.merges.Load(),
		Lineage:   c.Lineage(),
	}
}

func (c *Collection) reject(err error, identifier, name string) {
	c.rejected.Add(1)

	c.logger.Error("cannot create object",
		zap.String("identifier", identifier),
		zap.String("name", name),
		zap.Error(err),
	)
}

func compareKeys(a, b Key) int {
	if n := strings.Compare(a.Identifier, b.Identifier); n != 0 {
		return n
	}

	return strings.Compare(a.Name, b.Name)
}
