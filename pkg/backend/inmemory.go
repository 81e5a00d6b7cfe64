package backend

import (
	"context"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/cache"
)

// snapshotID keys the in-memory store.
type snapshotID string

func (id snapshotID) String() string { return string(id) }

// InMemory is a snapshot backend that keeps encoded snapshots in memory, leveraging the sharded `ConcurrentMap`.
// Snapshots are encoded on Put and decoded on Get, so callers never share state with the store.
type InMemory struct {
	items      cache.ConcurrentMap[snapshotID, []byte] // encoded snapshots by id
	Serializer serializer.ISerializer                  // Serializer encodes the snapshots held in memory
}

// NewInMemory creates a new in-memory snapshot store with the given options.
func NewInMemory(opts ...Option[InMemory]) (*InMemory, error) {
	backendInstance := &InMemory{
		items: cache.New[snapshotID, []byte](),
	}
	// Apply the backend options
	ApplyOptions(backendInstance, opts...)

	if backendInstance.Serializer == nil {
		var err error

		backendInstance.Serializer, err = serializer.New(constants.DefaultSerializer)
		if err != nil {
			return nil, err
		}
	}

	return backendInstance, nil
}

// Count returns the number of snapshots in the store.
func (cacheBackend *InMemory) Count(_ context.Context) int {
	return cacheBackend.items.Count()
}

// Get retrieves the snapshot stored under id.
func (cacheBackend *InMemory) Get(_ context.Context, id string) (*histcache.Snapshot, error) {
	data, ok := cacheBackend.items.Get(snapshotID(id))
	if !ok {
		return nil, ewrap.Wrapf(sentinel.ErrSnapshotNotFound, "%q", id)
	}

	return cacheBackend.decode(data)
}

// Put stores the snapshot under its id, replacing any previous one.
func (cacheBackend *InMemory) Put(_ context.Context, snap *histcache.Snapshot) error {
	if snap == nil {
		return ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot")
	}

	err := validID(snap.ID)
	if err != nil {
		return err
	}

	data, err := cacheBackend.Serializer.Marshal(snap)
	if err != nil {
		return ewrap.Wrapf(err, "encode snapshot %s", snap.ID)
	}

	cacheBackend.items.Set(snapshotID(snap.ID), data)

	return nil
}

// List returns the snapshots in the store that match the given filter options.
func (cacheBackend *InMemory) List(_ context.Context, filters ...IFilter) ([]*histcache.Snapshot, error) {
	stored := cacheBackend.items.Items()
	snaps := make([]*histcache.Snapshot, 0, len(stored))

	for _, data := range stored {
		snap, err := cacheBackend.decode(data)
		if err != nil {
			return nil, err
		}

		snaps = append(snaps, snap)
	}

	return applyFilters(constants.InMemoryBackend, snaps, filters...)
}

// Remove deletes the snapshots with the given ids.
func (cacheBackend *InMemory) Remove(_ context.Context, ids ...string) error {
	for _, id := range ids {
		cacheBackend.items.Remove(snapshotID(id))
	}

	return nil
}

// Clear removes all snapshots from the store.
func (cacheBackend *InMemory) Clear(_ context.Context) error {
	cacheBackend.items.Clear()

	return nil
}

// Close is a no-op for the in-memory store.
func (*InMemory) Close() error { return nil }

func (cacheBackend *InMemory) decode(data []byte) (*histcache.Snapshot, error) {
	snap := &histcache.Snapshot{}

	err := cacheBackend.Serializer.Unmarshal(data, snap)
	if err != nil {
		return nil, ewrap.Wrap(err, "decode snapshot")
	}

	return snap, nil
}
