package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"
	"github.com/nats-io/nats.go"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

func shardSnapshot(t *testing.T, id string, events int) *histcache.Snapshot {
	t.Helper()

	c := histcache.New(histcache.WithID(id))

	for range events {
		agg, ok := c.GetOrCreate("/CMUL7", catalog.NEvents)
		assert.True(t, ok)
		assert.NoError(t, agg.Increment())
	}

	snap, err := c.Snapshot()
	assert.NoError(t, err)

	return snap
}

func TestEncodeDecodeMessage(t *testing.T) {
	snap := shardSnapshot(t, "shard-0", 3)

	msg, err := EncodeMessage(DefaultSubject, snap, "cbor")
	assert.NoError(t, err)
	assert.Equal(t, "cbor", msg.Header.Get(HeaderFormat))
	assert.Equal(t, "shard-0", msg.Header.Get(HeaderSnapshot))
	assert.Equal(t, "1", msg.Header.Get(HeaderObjects))

	// the header wins over the default format
	decoded, err := DecodeMessage(msg, "json")
	assert.NoError(t, err)
	assert.Equal(t, "shard-0", decoded.ID)
	assert.Equal(t, 1, len(decoded.Objects))

	_, err = EncodeMessage(DefaultSubject, nil, "json")
	assert.True(t, errors.Is(err, sentinel.ErrParamCannotBeEmpty))

	_, err = DecodeMessage(&nats.Msg{Subject: DefaultSubject}, "json")
	assert.True(t, errors.Is(err, sentinel.ErrParamCannotBeEmpty))
}

func TestCollector_Handle(t *testing.T) {
	dst := histcache.New(histcache.WithID("merged"))

	collector, err := NewCollector(dst)
	assert.NoError(t, err)

	for i, id := range []string{"shard-0", "shard-1"} {
		msg, err := EncodeMessage(DefaultSubject, shardSnapshot(t, id, i+2), "msgpack")
		assert.NoError(t, err)

		collector.Handle(msg)
	}

	nevents, ok := dst.Get("/CMUL7", catalog.NEvents)
	assert.True(t, ok)
	assert.Equal(t, 5.0, nevents.SumW())

	// a redelivery is dropped
	msg, err := EncodeMessage(DefaultSubject, shardSnapshot(t, "shard-1", 3), "msgpack")
	assert.NoError(t, err)
	collector.Handle(msg)

	collector.Handle(&nats.Msg{Subject: DefaultSubject, Data: []byte("not a snapshot")})

	stats := collector.Stats()
	assert.Equal(t, uint64(4), stats.Received)
	assert.Equal(t, uint64(2), stats.Merged)
	assert.Equal(t, uint64(1), stats.Duplicates)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, 5.0, nevents.SumW())
}

func TestCollector_HeaderlessMessageUsesDefaultFormat(t *testing.T) {
	dst := histcache.New(histcache.WithID("merged"))

	collector, err := NewCollector(dst, WithDefaultFormat("json"))
	assert.NoError(t, err)

	data, err := histcache.EncodeSnapshot(shardSnapshot(t, "shard-0", 1), "json")
	assert.NoError(t, err)

	collector.Handle(&nats.Msg{Subject: DefaultSubject, Data: data})
	assert.Equal(t, uint64(1), collector.Stats().Merged)
}

func TestCollector_Wait(t *testing.T) {
	collector, err := NewCollector(histcache.New(histcache.WithID("merged")))
	assert.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done <- collector.Wait(ctx, 2)
	}()

	for _, id := range []string{"a", "b"} {
		msg, err := EncodeMessage(DefaultSubject, shardSnapshot(t, id, 1), "json")
		assert.NoError(t, err)
		collector.Handle(msg)
	}

	assert.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = collector.Wait(ctx, 3)
	assert.True(t, errors.Is(err, sentinel.ErrTimeoutOrCanceled))
}

func TestCollector_StopFreezesDestination(t *testing.T) {
	dst := histcache.New(histcache.WithID("merged"))

	collector, err := NewCollector(dst)
	assert.NoError(t, err)

	const shards = 16

	msgs := make([]*nats.Msg, 0, shards)

	for i := range shards {
		msg, err := EncodeMessage(DefaultSubject, shardSnapshot(t, fmt.Sprintf("shard-%d", i), 1), "json")
		assert.NoError(t, err)

		msgs = append(msgs, msg)
	}

	var wg sync.WaitGroup

	// handled one at a time, as a subscription goroutine does
	wg.Go(func() {
		for _, msg := range msgs {
			collector.Handle(msg)
		}
	})

	collector.Stop()

	var before float64
	if nevents, ok := dst.Get("/CMUL7", catalog.NEvents); ok {
		before = nevents.SumW()
	}

	wg.Wait()

	var after float64
	if nevents, ok := dst.Get("/CMUL7", catalog.NEvents); ok {
		after = nevents.SumW()
	}

	stats := collector.Stats()
	assert.Equal(t, before, after)
	assert.Equal(t, float64(stats.Merged), after)
	assert.Equal(t, uint64(shards), stats.Merged+stats.Dropped)
	assert.Equal(t, uint64(shards), stats.Received)
}

func TestConstructors(t *testing.T) {
	_, err := NewPublisher(nil)
	assert.True(t, errors.Is(err, sentinel.ErrNilClient))

	_, err = NewCollector(nil)
	assert.True(t, errors.Is(err, sentinel.ErrNilCollection))

	collector, err := NewCollector(histcache.New(), WithQueueGroup("mergers"))
	assert.NoError(t, err)

	_, err = collector.Subscribe(nil, "")
	assert.True(t, errors.Is(err, sentinel.ErrNilClient))
}
