// Package constants defines default configuration values and backend types
// for the histcache system. It provides the standard settings for collections,
// shard runners, snapshot backends and the management server.
package constants

import "time"

const (
	// DefaultCollectionName is the name given to a collection when none is configured.
	// It mirrors the name of the output container the collection is handed to at the end of a run.
	DefaultCollectionName = "MergeableCollection"
	// DefaultShards is the number of independent shards a runner spreads events over.
	DefaultShards = 1
	// DefaultEventBuffer is the size of each shard's event channel.
	DefaultEventBuffer = 256
	// DefaultSerializer is the serializer used to encode snapshots when none is configured.
	DefaultSerializer = "msgpack"
	// DefaultManagementAddr is the listen address of the management HTTP server.
	DefaultManagementAddr = "127.0.0.1:9480"
	// DefaultShutdownTimeout bounds graceful shutdown of servers and transports.
	DefaultShutdownTimeout = 5 * time.Second
	// GeneratedTriggerClass is the pseudo trigger class used for the Monte Carlo generated pass.
	GeneratedTriggerClass = "generated"
	// InMemoryBackend is the in-memory snapshot backend type.
	InMemoryBackend = "in-memory"
	// RedisBackend is the name of the Redis snapshot backend.
	RedisBackend = "redis"
	// RedisClusterBackend is the name of the Redis Cluster snapshot backend.
	RedisClusterBackend = "redis-cluster"
	// FileBackend is the name of the filesystem snapshot backend.
	FileBackend = "file"
)
