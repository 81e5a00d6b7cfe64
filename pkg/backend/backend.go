// Package backend provides storage for collection snapshots.
// It defines the contract that all snapshot stores must follow, so that shards
// can park their partial results and a later merge step can pick them up
// regardless of where they were written. The package ships in-memory,
// filesystem, Redis and Redis Cluster implementations.
//
// The main interface IBackend provides methods for:
//   - Storing and retrieving snapshots by collection id
//   - Counting, listing with optional filters and removing snapshots
//   - Clearing the store
//
// Backend options are typed by the IBackendConstrain constraint, so an option
// built for one store cannot be handed to another.
package backend

import (
	"context"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/types"
)

// IBackendConstrain defines the type constraint for snapshot backend implementations.
// It restricts the generic option type to supported backend types, ensuring
// options are checked at compile time.
type IBackendConstrain interface {
	InMemory | Redis | RedisCluster | File
}

// IBackend defines the contract that all snapshot backends must implement.
//
// Snapshots are stored under their collection id: putting a snapshot whose id
// is already present replaces it. All methods accept a context.Context
// parameter for cancellation and timeout control.
type IBackend interface {
	// Get retrieves the snapshot stored under id.
	// It returns sentinel.ErrSnapshotNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*histcache.Snapshot, error)
	// Put stores a snapshot under its id.
	Put(ctx context.Context, snap *histcache.Snapshot) error
	// Count returns the number of snapshots currently stored.
	Count(ctx context.Context) int
	// Remove deletes the snapshots with the given ids. Unknown ids are ignored.
	Remove(ctx context.Context, ids ...string) error
	// List the snapshots in the store that meet the specified criteria.
	List(ctx context.Context, filters ...IFilter) ([]*histcache.Snapshot, error)
	// Clear removes all snapshots from the store.
	Clear(ctx context.Context) error
	// Close releases the resources held by the store.
	Close() error
}

// LoadAll fetches the snapshots with the given ids and rebuilds their
// collections. With no ids every stored snapshot is loaded, except those
// whose content another stored snapshot already holds: a merged snapshot
// stands in for the shards it folded.
func LoadAll(ctx context.Context, store IBackend, ids []string, options ...histcache.Option) ([]*histcache.Collection, error) {
	var snaps []*histcache.Snapshot

	if len(ids) == 0 {
		listed, err := store.List(ctx, WithSortBy(types.SortByID.String()))
		if err != nil {
			return nil, err
		}

		snaps = dropCovered(listed)
	} else {
		snaps = make([]*histcache.Snapshot, 0, len(ids))

		for _, id := range ids {
			snap, err := store.Get(ctx, id)
			if err != nil {
				return nil, err
			}

			snaps = append(snaps, snap)
		}
	}

	out := make([]*histcache.Collection, 0, len(snaps))

	for _, snap := range snaps {
		c, err := histcache.FromSnapshot(snap, options...)
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, nil
}

// dropCovered removes the snapshots whose content is already held by another
// snapshot. The content of a snapshot is what it folded: its lineage without
// its own id, or the id alone for a snapshot that folded nothing. Of two
// snapshots with the same content the first is kept.
func dropCovered(snaps []*histcache.Snapshot) []*histcache.Snapshot {
	contents := make([]map[string]struct{}, len(snaps))

	for i, snap := range snaps {
		contents[i] = make(map[string]struct{}, len(snap.Lineage))

		for _, id := range snap.Lineage {
			if id != snap.ID {
				contents[i][id] = struct{}{}
			}
		}

		if len(contents[i]) == 0 {
			contents[i][snap.ID] = struct{}{}
		}
	}

	out := make([]*histcache.Snapshot, 0, len(snaps))

	for i, snap := range snaps {
		covered := false

		for j := range snaps {
			if i == j || len(contents[i]) > len(contents[j]) || !subset(contents[i], contents[j]) {
				continue
			}

			if len(contents[i]) < len(contents[j]) || j < i {
				covered = true

				break
			}
		}

		if !covered {
			out = append(out, snap)
		}
	}

	return out
}

func subset(a, b map[string]struct{}) bool {
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}

	return true
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ewrap.Wrap(sentinel.ErrInvalidSnapshotID, "empty id")
	}

	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return ewrap.Wrapf(sentinel.ErrInvalidSnapshotID, "%q", id)
	}

	return nil
}
