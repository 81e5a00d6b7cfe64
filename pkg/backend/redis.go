package backend

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

// Redis is a snapshot backend that stores encoded snapshots in a redis server.
type Redis struct {
	rdb         *redis.Client          // redis client to interact with the redis server
	keysSetName string                 // keysSetName is the name of the set that holds the ids of the stored snapshots
	keyPrefix   string                 // keyPrefix prefixes the hash key of every snapshot
	Serializer  serializer.ISerializer // Serializer is the serializer used to encode the snapshots before storing them
	store       redisStore
}

// NewRedis creates a new redis snapshot store with the given options.
func NewRedis(redisOptions ...Option[Redis]) (*Redis, error) {
	rb := &Redis{}
	// Apply the backend options
	ApplyOptions(rb, redisOptions...)

	// Check if the client is nil
	if rb.rdb == nil {
		return nil, sentinel.ErrNilClient
	}

	if rb.keysSetName == "" {
		rb.keysSetName = constants.RedisKeySetName
	}

	if rb.keyPrefix == "" {
		rb.keyPrefix = constants.RedisKeyPrefix
	}

	// Check if the serializer is nil
	if rb.Serializer == nil {
		var err error
		// Set the serializer to default to `msgpack`
		rb.Serializer, err = serializer.New(constants.DefaultSerializer)
		if err != nil {
			return nil, err
		}
	}

	rb.store = redisStore{
		client:      rb.rdb,
		keysSetName: rb.keysSetName,
		keyPrefix:   rb.keyPrefix,
		ser:         rb.Serializer,
		backendType: constants.RedisBackend,
	}

	// return the new backend
	return rb, nil
}

// Count returns the number of stored snapshots.
func (cacheBackend *Redis) Count(ctx context.Context) int {
	return cacheBackend.store.count(ctx)
}

// Get retrieves the snapshot stored under id.
func (cacheBackend *Redis) Get(ctx context.Context, id string) (*histcache.Snapshot, error) {
	return cacheBackend.store.get(ctx, id)
}

// Put stores the snapshot under its id.
func (cacheBackend *Redis) Put(ctx context.Context, snap *histcache.Snapshot) error {
	return cacheBackend.store.put(ctx, snap)
}

// List returns the stored snapshots that match the given filter options.
func (cacheBackend *Redis) List(ctx context.Context, filters ...IFilter) ([]*histcache.Snapshot, error) {
	return cacheBackend.store.list(ctx, filters...)
}

// Remove deletes the snapshots with the given ids.
func (cacheBackend *Redis) Remove(ctx context.Context, ids ...string) error {
	return cacheBackend.store.remove(ctx, ids...)
}

// Clear removes every tracked snapshot. Keys outside the tracking set are left alone.
func (cacheBackend *Redis) Clear(ctx context.Context) error {
	return cacheBackend.store.clear(ctx)
}

// Close closes the redis client.
func (cacheBackend *Redis) Close() error {
	return cacheBackend.rdb.Close()
}
