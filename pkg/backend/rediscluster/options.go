// Package rediscluster builds the go-redis cluster client used by the Redis
// Cluster snapshot backend.
package rediscluster

import (
	"crypto/tls"

	"github.com/redis/go-redis/v9"
)

// Option configures the redis.ClusterOptions a Store is built from.
type Option func(*redis.ClusterOptions)

// ApplyOptions applies a list of options to the provided ClusterOptions.
func ApplyOptions(opt *redis.ClusterOptions, options ...Option) {
	for _, option := range options {
		option(opt)
	}
}

// WithAddrs sets the seed nodes of the cluster.
func WithAddrs(addrs ...string) Option {
	return func(opt *redis.ClusterOptions) {
		opt.Addrs = addrs
	}
}

// WithCredentials sets the ACL username and the password.
func WithCredentials(username, password string) Option {
	return func(opt *redis.ClusterOptions) {
		opt.Username = username
		opt.Password = password
	}
}

// WithTLSConfig enables TLS with the given configuration.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opt *redis.ClusterOptions) {
		opt.TLSConfig = tlsConfig
	}
}

// WithPoolSize sets the per-node pool size.
func WithPoolSize(size int) Option {
	return func(opt *redis.ClusterOptions) {
		opt.PoolSize = size
	}
}
