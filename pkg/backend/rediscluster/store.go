package rediscluster

import (
	"context"
	"net"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/histcache/internal/constants"
)

// Store wraps a cluster client.
type Store struct {
	Client *redis.ClusterClient
}

// New builds a cluster client from the defaults and opts.
func New(opts ...Option) (*Store, error) {
	opt := &redis.ClusterOptions{
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: constants.RedisDialTimeout}

			return dialer.DialContext(ctx, network, addr)
		},
		MaxRetries:   constants.RedisClientMaxRetries,
		ReadTimeout:  constants.RedisClientReadTimeout,
		WriteTimeout: constants.RedisClientWriteTimeout,
		PoolSize:     constants.RedisClientPoolSize,
		MinIdleConns: constants.RedisClientMinIdleConns,
		PoolTimeout:  constants.RedisClientPoolTimeout,
	}

	ApplyOptions(opt, opts...)

	if len(opt.Addrs) == 0 {
		return nil, ewrap.New("redis cluster addrs are empty")
	}

	for _, addr := range opt.Addrs {
		if strings.TrimSpace(addr) == "" {
			return nil, ewrap.New("redis cluster address is empty")
		}
	}

	return &Store{Client: redis.NewClusterClient(opt)}, nil
}
