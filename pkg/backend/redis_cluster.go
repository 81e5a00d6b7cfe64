package backend

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

// clusterHashTag keeps the tracking set and every snapshot hash in one slot,
// so the MULTI pipelines of the shared store stay single-slot.
const clusterHashTag = "{histcache}:"

// RedisCluster is a snapshot backend that stores snapshots in a Redis Cluster.
// It mirrors the single-node Redis backend semantics but uses go-redis ClusterClient.
type RedisCluster struct {
	rdb         *redis.ClusterClient // redis cluster client
	keysSetName string
	keyPrefix   string
	Serializer  serializer.ISerializer
	store       redisStore
}

// NewRedisCluster creates a new Redis Cluster backend with the given options.
func NewRedisCluster(redisOptions ...Option[RedisCluster]) (*RedisCluster, error) {
	rc := &RedisCluster{}

	ApplyOptions(rc, redisOptions...)

	if rc.rdb == nil {
		return nil, sentinel.ErrNilClient
	}

	if rc.keysSetName == "" {
		rc.keysSetName = clusterHashTag + constants.RedisKeySetName
	}

	if rc.keyPrefix == "" {
		rc.keyPrefix = clusterHashTag + constants.RedisKeyPrefix
	}

	if rc.Serializer == nil {
		var err error

		rc.Serializer, err = serializer.New(constants.DefaultSerializer)
		if err != nil {
			return nil, err
		}
	}

	rc.store = redisStore{
		client:      rc.rdb,
		keysSetName: rc.keysSetName,
		keyPrefix:   rc.keyPrefix,
		ser:         rc.Serializer,
		backendType: constants.RedisClusterBackend,
	}

	return rc, nil
}

// Count returns the number of stored snapshots.
func (cacheBackend *RedisCluster) Count(ctx context.Context) int {
	return cacheBackend.store.count(ctx)
}

// Get retrieves a snapshot by id.
func (cacheBackend *RedisCluster) Get(ctx context.Context, id string) (*histcache.Snapshot, error) {
	return cacheBackend.store.get(ctx, id)
}

// Put stores a snapshot in the cluster.
func (cacheBackend *RedisCluster) Put(ctx context.Context, snap *histcache.Snapshot) error {
	return cacheBackend.store.put(ctx, snap)
}

// List returns snapshots matching optional filters.
func (cacheBackend *RedisCluster) List(ctx context.Context, filters ...IFilter) ([]*histcache.Snapshot, error) {
	return cacheBackend.store.list(ctx, filters...)
}

// Remove deletes the specified snapshots.
func (cacheBackend *RedisCluster) Remove(ctx context.Context, ids ...string) error {
	return cacheBackend.store.remove(ctx, ids...)
}

// Clear removes every tracked snapshot.
func (cacheBackend *RedisCluster) Clear(ctx context.Context) error {
	return cacheBackend.store.clear(ctx)
}

// Close closes the cluster client.
func (cacheBackend *RedisCluster) Close() error {
	return cacheBackend.rdb.Close()
}
