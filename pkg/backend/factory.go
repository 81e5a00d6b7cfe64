package backend

import (
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
	redisstore "github.com/hyp3rd/histcache/pkg/backend/redis"
	"github.com/hyp3rd/histcache/pkg/backend/rediscluster"
)

// Config selects and configures a snapshot backend.
type Config struct {
	// Type is one of in-memory, file, redis or redis-cluster.
	Type string `yaml:"type"`
	// Serializer names the snapshot encoding: json, msgpack or cbor.
	Serializer string `yaml:"serializer"`
	// Dir is the directory of the file backend.
	Dir string `yaml:"dir"`
	// Redis configures the redis and redis-cluster backends.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds the connection settings of the Redis backends.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL. It takes precedence over Addr.
	URL      string   `yaml:"url"`
	Addr     string   `yaml:"addr"`
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	// KeysSetName overrides the name of the set tracking the snapshot ids.
	KeysSetName string `yaml:"keysSetName"`
}

// Open builds the backend described by cfg. The caller closes it.
func Open(cfg Config) (IBackend, error) { //nolint:ireturn
	format := cfg.Serializer
	if format == "" {
		format = constants.DefaultSerializer
	}

	ser, err := serializer.New(format)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Type) {
	case "", constants.InMemoryBackend:
		return asBackend(NewInMemory(WithSerializer[InMemory](ser)))
	case constants.FileBackend:
		return asBackend(NewFile(WithDir(cfg.Dir), WithSerializer[File](ser)))
	case constants.RedisBackend:
		return asBackend(openRedis(cfg.Redis, ser))
	case constants.RedisClusterBackend:
		return asBackend(openRedisCluster(cfg.Redis, ser))
	default:
		return nil, ewrap.Wrapf(sentinel.ErrBackendNotFound, "%q", cfg.Type)
	}
}

// asBackend keeps a failed constructor from yielding a non-nil interface around a nil pointer.
func asBackend[T IBackendConstrain](b *T, err error) (IBackend, error) { //nolint:ireturn
	if err != nil {
		return nil, err
	}

	store, ok := any(b).(IBackend)
	if !ok {
		return nil, ewrap.Wrapf(sentinel.ErrBackendNotFound, "%T", b)
	}

	return store, nil
}

func openRedis(cfg RedisConfig, ser serializer.ISerializer) (*Redis, error) {
	opts := []redisstore.Option{redisstore.WithAddr(cfg.Addr)}
	if cfg.URL != "" {
		opts = append(opts, redisstore.WithURL(cfg.URL))
	} else {
		opts = append(opts, redisstore.WithCredentials(cfg.Username, cfg.Password), redisstore.WithDB(cfg.DB))
	}

	store, err := redisstore.New(opts...)
	if err != nil {
		return nil, err
	}

	backendOpts := []Option[Redis]{WithRedisClient(store.Client), WithSerializer[Redis](ser)}
	if cfg.KeysSetName != "" {
		backendOpts = append(backendOpts, WithKeysSetName(cfg.KeysSetName))
	}

	return NewRedis(backendOpts...)
}

func openRedisCluster(cfg RedisConfig, ser serializer.ISerializer) (*RedisCluster, error) {
	store, err := rediscluster.New(
		rediscluster.WithAddrs(cfg.Addrs...),
		rediscluster.WithCredentials(cfg.Username, cfg.Password),
	)
	if err != nil {
		return nil, err
	}

	backendOpts := []Option[RedisCluster]{WithRedisClusterClient(store.Client), WithSerializer[RedisCluster](ser)}
	if cfg.KeysSetName != "" {
		backendOpts = append(backendOpts, WithClusterKeysSetName(cfg.KeysSetName))
	}

	return NewRedisCluster(backendOpts...)
}
