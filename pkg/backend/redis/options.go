// Package redis builds the go-redis client used by the Redis snapshot backend.
// Settings are applied to redis.Options through functional options, starting
// from the defaults in internal/constants.
package redis

import (
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option configures the redis.Options a Store is built from.
type Option func(*redis.Options)

// ApplyOptions applies the given options to opt in order.
func ApplyOptions(opt *redis.Options, options ...Option) {
	for _, option := range options {
		option(opt)
	}
}

// WithAddr sets the host:port of the server.
func WithAddr(addr string) Option {
	return func(opt *redis.Options) {
		opt.Addr = addr
	}
}

// WithURL fills address, credentials, database and TLS from a redis:// or
// rediss:// URL. An unparsable URL leaves the options untouched; New then
// reports the missing address.
func WithURL(url string) Option {
	return func(opt *redis.Options) {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return
		}

		opt.Addr = parsed.Addr
		opt.Username = parsed.Username
		opt.Password = parsed.Password
		opt.DB = parsed.DB
		opt.TLSConfig = parsed.TLSConfig
	}
}

// WithCredentials sets the ACL username and the password.
func WithCredentials(username, password string) Option {
	return func(opt *redis.Options) {
		opt.Username = username
		opt.Password = password
	}
}

// WithDB selects the logical database.
func WithDB(db int) Option {
	return func(opt *redis.Options) {
		opt.DB = db
	}
}

// WithTimeouts sets the dial, read and write timeouts. Zero values keep the defaults.
func WithTimeouts(dial, read, write time.Duration) Option {
	return func(opt *redis.Options) {
		if dial > 0 {
			opt.DialTimeout = dial
		}

		if read > 0 {
			opt.ReadTimeout = read
		}

		if write > 0 {
			opt.WriteTimeout = write
		}
	}
}

// WithPoolSize sets the maximum number of socket connections.
func WithPoolSize(poolSize int) Option {
	return func(opt *redis.Options) {
		opt.PoolSize = poolSize
	}
}

// WithTLSConfig enables TLS with the given configuration.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opt *redis.Options) {
		opt.TLSConfig = tlsConfig
	}
}
