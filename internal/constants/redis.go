package constants

import "time"

const (
	// RedisKeySetName is the name of the Redis set holding the stored snapshot ids.
	RedisKeySetName = "histcache:snapshots"
	// RedisKeyPrefix prefixes every snapshot hash key.
	RedisKeyPrefix = "histcache:snapshot:"
	// RedisDialTimeout is the timeout for the Redis dialer.
	RedisDialTimeout = 10 * time.Second
	// RedisClientMaxRetries is the maximum number of retries for the Redis client.
	RedisClientMaxRetries = 10
	// RedisClientReadTimeout is the read timeout for the Redis client.
	RedisClientReadTimeout = 30 * time.Second
	// RedisClientWriteTimeout is the write timeout for the Redis client.
	RedisClientWriteTimeout = 30 * time.Second
	// RedisClientPoolSize is the pool size for the Redis client.
	RedisClientPoolSize = 20
)

const (
	// RedisClientMinIdleConns is the minimum number of idle connections kept by the Redis client.
	RedisClientMinIdleConns = 2
	// RedisClientPoolTimeout is how long the Redis client waits for a pooled connection.
	RedisClientPoolTimeout = 10 * time.Second
	// RedisDataField is the hash field holding an encoded snapshot.
	RedisDataField = "data"
	// RedisFormatField is the hash field holding the serializer name of a snapshot.
	RedisFormatField = "format"
	// RedisCreatedAtField is the hash field holding the snapshot creation time.
	RedisCreatedAtField = "createdAt"
)
