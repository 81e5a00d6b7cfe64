package backend

import (
	"context"
	"errors"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/libs/serializer"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

const (
	maxRetries   = 3
	retriesDelay = 100 * time.Millisecond
)

// redisCmd abstracts the subset of go-redis client API we need.
// Both *redis.Client and *redis.ClusterClient satisfy it.
type redisCmd interface {
	TxPipeline() redis.Pipeliner
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	Close() error
}

// redisStore implements the snapshot operations shared by the Redis and Redis Cluster backends.
// Each snapshot lives in a hash under keyPrefix+id; the ids are tracked in the keysSetName set.
type redisStore struct {
	client      redisCmd
	keysSetName string
	keyPrefix   string
	ser         serializer.ISerializer
	backendType string
}

func (s redisStore) key(id string) string {
	return s.keyPrefix + id
}

func (s redisStore) count(ctx context.Context) int {
	count, err := s.client.SCard(ctx, s.keysSetName).Result()
	if err != nil {
		return 0
	}

	return int(count)
}

func (s redisStore) get(ctx context.Context, id string) (*histcache.Snapshot, error) {
	// Check if the id is in the set of ids
	isMember, err := s.client.SIsMember(ctx, s.keysSetName, id).Result()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to check snapshot membership")
	}

	if !isMember {
		return nil, ewrap.Wrapf(sentinel.ErrSnapshotNotFound, "%q", id)
	}

	data, err := s.client.HGet(ctx, s.key(id), constants.RedisDataField).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ewrap.Wrapf(sentinel.ErrSnapshotNotFound, "%q", id)
		}

		return nil, ewrap.Wrap(err, "failed to get snapshot from redis")
	}

	return s.decode(data)
}

func (s redisStore) put(ctx context.Context, snap *histcache.Snapshot) error {
	if snap == nil {
		return ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot")
	}

	// Validate id
	err := validID(snap.ID)
	if err != nil {
		return err
	}

	// Serialize snapshot
	data, err := s.ser.Marshal(snap)
	if err != nil {
		return ewrap.Wrapf(err, "encode snapshot %s", snap.ID)
	}

	pipe := s.client.TxPipeline()

	err = pipe.HSet(
		ctx,
		s.key(snap.ID),
		map[string]any{
			constants.RedisDataField:      data,
			constants.RedisCreatedAtField: snap.CreatedAt.Format(time.RFC3339Nano),
		},
	).Err()
	if err != nil {
		return ewrap.Wrap(err, "failed to set snapshot in redis")
	}

	// Track id
	pipe.SAdd(ctx, s.keysSetName, snap.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return ewrap.Wrap(err, "failed to execute redis pipeline")
	}

	return nil
}

func (s redisStore) list(ctx context.Context, filters ...IFilter) ([]*histcache.Snapshot, error) {
	// Get ids in the logical set
	ids, err := s.client.SMembers(ctx, s.keysSetName).Result()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to get ids from redis")
	}

	// Pipeline fetches
	cmds, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGet(ctx, s.key(id), constants.RedisDataField)
		}

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, ewrap.Wrap(err, "failed to execute redis pipeline while listing")
	}

	snaps := make([]*histcache.Snapshot, 0, len(ids))

	for _, cmd := range cmds {
		command, ok := cmd.(*redis.StringCmd)
		if !ok {
			continue
		}

		data, err := command.Bytes()
		if err != nil {
			// the hash went away between SMEMBERS and HGET
			if errors.Is(err, redis.Nil) {
				continue
			}

			return nil, ewrap.Wrap(err, "failed to get snapshot data from redis")
		}

		snap, err := s.decode(data)
		if err != nil {
			return nil, err
		}

		snaps = append(snaps, snap)
	}

	return applyFilters(s.backendType, snaps, filters...)
}

func (s redisStore) remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids))
	members := make([]any, 0, len(ids))

	for _, id := range ids {
		keys = append(keys, s.key(id))
		members = append(members, id)
	}

	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.keysSetName, members...)
	pipe.Del(ctx, keys...)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return ewrap.Wrap(err, "executing pipeline")
	}

	return nil
}

func (s redisStore) clear(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, s.keysSetName).Result()
	if err != nil {
		return ewrap.Wrap(err, "listing snapshot ids", ewrap.WithRetry(maxRetries, retriesDelay))
	}

	return s.remove(ctx, ids...)
}

func (s redisStore) decode(data []byte) (*histcache.Snapshot, error) {
	snap := &histcache.Snapshot{}

	err := s.ser.Unmarshal(data, snap)
	if err != nil {
		return nil, ewrap.Wrap(err, "decode snapshot")
	}

	return snap, nil
}
