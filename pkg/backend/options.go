package backend

import (
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/histcache/internal/libs/serializer"
)

// iSerializableBackend is implemented by the backends whose encoding can be configured.
type iSerializableBackend interface {
	// setSerializer sets the snapshot serializer.
	setSerializer(ser serializer.ISerializer)
}

func (inm *InMemory) setSerializer(ser serializer.ISerializer)    { inm.Serializer = ser }
func (rb *Redis) setSerializer(ser serializer.ISerializer)        { rb.Serializer = ser }
func (rc *RedisCluster) setSerializer(ser serializer.ISerializer) { rc.Serializer = ser }
func (fb *File) setSerializer(ser serializer.ISerializer)         { fb.Serializer = ser }

// Option is a function type that can be used to configure a snapshot backend.
type Option[T IBackendConstrain] func(*T)

// ApplyOptions applies the given options to the given backend.
func ApplyOptions[T IBackendConstrain](backend *T, options ...Option[T]) {
	for _, option := range options {
		option(backend)
	}
}

// WithSerializer is an option that sets the serializer used to encode the snapshots.
//   - The default serializer is `serializer.MsgpackSerializer`.
//   - The `serializer.DefaultJSONSerializer` stores human readable snapshots.
//   - The interface `serializer.ISerializer` can be implemented to use a custom serializer.
func WithSerializer[T IBackendConstrain](ser serializer.ISerializer) Option[T] {
	return func(backend *T) {
		if configurable, ok := any(backend).(iSerializableBackend); ok {
			configurable.setSerializer(ser)
		}
	}
}

// WithRedisClient is an option that sets the redis client to use.
func WithRedisClient(client *redis.Client) Option[Redis] {
	return func(backend *Redis) {
		backend.rdb = client
	}
}

// WithKeysSetName is an option that sets the name of the set that tracks the stored snapshot ids.
func WithKeysSetName(keysSetName string) Option[Redis] {
	return func(backend *Redis) {
		backend.keysSetName = keysSetName
	}
}

// WithKeyPrefix is an option that sets the prefix of the snapshot hash keys.
func WithKeyPrefix(prefix string) Option[Redis] {
	return func(backend *Redis) {
		backend.keyPrefix = prefix
	}
}

// WithRedisClusterClient sets the redis cluster client to use.
func WithRedisClusterClient(client *redis.ClusterClient) Option[RedisCluster] {
	return func(backend *RedisCluster) {
		backend.rdb = client
	}
}

// WithClusterKeysSetName sets the name of the set for cluster backend ids.
// Keep a hash tag in the name shared with the key prefix.
func WithClusterKeysSetName(keysSetName string) Option[RedisCluster] {
	return func(backend *RedisCluster) {
		backend.keysSetName = keysSetName
	}
}

// WithClusterKeyPrefix sets the prefix of the snapshot hash keys in the cluster.
func WithClusterKeyPrefix(prefix string) Option[RedisCluster] {
	return func(backend *RedisCluster) {
		backend.keyPrefix = prefix
	}
}

// WithDir sets the directory of the filesystem store.
func WithDir(dir string) Option[File] {
	return func(backend *File) {
		backend.dir = dir
	}
}
