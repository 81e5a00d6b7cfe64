package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/longbridgeapp/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/analysis"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

type sliceSource struct {
	events []*analysis.Event
	err    error
	pos    int
}

func (s *sliceSource) Next() (*analysis.Event, error) {
	if s.pos >= len(s.events) {
		if s.err != nil {
			return nil, s.err
		}

		return nil, io.EOF
	}

	ev := s.events[s.pos]
	s.pos++

	return ev, nil
}

func syntheticEvents(n int) []*analysis.Event {
	triggers := []string{"CINT7-B-NOPF-MUFAST", "CMSL7-B-NOPF-MUFAST", "CMSH7-B-NOPF-MUFAST"}
	out := make([]*analysis.Event, 0, n)

	for i := range n {
		ev := &analysis.Event{
			ID:              fmt.Sprintf("run-1/ev-%d", i),
			Format:          analysis.FormatAOD,
			PhysicsSelected: i%7 != 0,
			TriggerClasses:  []string{triggers[i%len(triggers)], triggers[(i+1)%len(triggers)]},
			Centrality:      float64(i%4) * 10,
			QA:              &analysis.Vec2{X: 0.1, Y: float64(i%5) / 10},
			QB:              &analysis.Vec2{X: 0.2, Y: 0.1},
		}

		for j := range i % 4 {
			ev.Tracks = append(ev.Tracks, analysis.Track{
				Pt:           float64((i+j)%30) + 0.5,
				Eta:          -3.9 + float64(j)*0.3,
				Phi:          float64((i*j)%6) + 0.1,
				Charge:       1 - 2*(j%2),
				RAbs:         30,
				PDCA:         1,
				TriggerMatch: 1 + (i+j)%3,
				MCLabel:      -1,
			})
		}

		out = append(out, ev)
	}

	return out
}

func assertSameCollections(t *testing.T, want, got *histcache.Collection) {
	t.Helper()

	assert.Equal(t, want.Keys(), got.Keys())

	for _, key := range want.Keys() {
		w, _ := want.Get(key.Identifier, key.Name)
		g, _ := got.Get(key.Identifier, key.Name)

		assert.Equal(t, w.Entries(), g.Entries())
		assert.Equal(t, w.SumW(), g.SumW())

		wr, err := w.Record()
		assert.NoError(t, err)

		gr, err := g.Record()
		assert.NoError(t, err)

		assert.Equal(t, wr.Sparse, gr.Sparse)
	}
}

func TestRunner_ShardedEqualsSerial(t *testing.T) {
	defer goleak.VerifyNone(t)

	events := syntheticEvents(500)

	serial, err := NewRunner(WithRunID("serial")).Run(context.Background(), &sliceSource{events: events})
	assert.NoError(t, err)

	sharded, err := NewRunner(WithRunID("sharded"), WithShards(4), WithBuffer(8)).Run(context.Background(), &sliceSource{events: events})
	assert.NoError(t, err)

	assert.True(t, serial.Merged.Count() > 0)
	assertSameCollections(t, serial.Merged, sharded.Merged)

	assert.Equal(t, 4, len(sharded.Shards))
	assert.Equal(t, []string{
		"sharded-merged", "sharded-shard-0", "sharded-shard-1", "sharded-shard-2", "sharded-shard-3",
	}, sharded.Merged.Lineage())

	var accepted uint64
	for _, st := range sharded.Stats {
		accepted += st.Accepted
	}

	assert.Equal(t, serial.Stats[0].Accepted, accepted)
}

func TestRunner_RouteIsStable(t *testing.T) {
	r := NewRunner(WithShards(8))

	for i := range 100 {
		id := fmt.Sprintf("ev-%d", i)
		shard := r.Route(id)
		assert.True(t, shard >= 0 && shard < 8)
		assert.Equal(t, shard, NewRunner(WithShards(8)).Route(id))
	}
}

func TestRunner_DoneHook(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu   sync.Mutex
		done []string
	)

	r := NewRunner(WithRunID("hook"), WithShards(3), WithDoneHook(func(_ context.Context, c *histcache.Collection) error {
		mu.Lock()
		defer mu.Unlock()

		done = append(done, c.ID())

		return nil
	}))

	_, err := r.Run(context.Background(), &sliceSource{events: syntheticEvents(30)})
	assert.NoError(t, err)
	assert.Equal(t, 3, len(done))
}

func TestRunner_TaskLogsCarryShard(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zapcore.ErrorLevel)

	events := syntheticEvents(8)
	for _, ev := range events {
		ev.Format = ""
	}

	r := NewRunner(
		WithShards(2),
		WithLogger(zap.New(core)),
		WithTaskOptions(analysis.WithTaskLogger(zap.NewNop())),
	)

	_, err := r.Run(context.Background(), &sliceSource{events: events})
	assert.NoError(t, err)

	skipped := logs.FilterMessage("event skipped").All()
	assert.Equal(t, len(events), len(skipped))

	for _, entry := range skipped {
		_, ok := entry.ContextMap()["shard"]
		assert.True(t, ok)
	}
}

func TestRunner_Errors(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")

	_, err := NewRunner(WithShards(2)).Run(context.Background(), &sliceSource{events: syntheticEvents(20), err: boom})
	assert.True(t, errors.Is(err, boom))

	_, err = NewRunner().Run(context.Background(), nil)
	assert.True(t, errors.Is(err, sentinel.ErrParamCannotBeEmpty))

	_, err = NewRunner(WithShards(2), WithDoneHook(func(context.Context, *histcache.Collection) error { return boom })).
		Run(context.Background(), &sliceSource{events: syntheticEvents(5)})
	assert.True(t, errors.Is(err, boom))
}

func TestRunner_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(WithShards(2), WithBuffer(0)).Run(ctx, &sliceSource{events: syntheticEvents(50)})
	assert.True(t, errors.Is(err, sentinel.ErrTimeoutOrCanceled))
}

func TestMerge_RejectsDuplicateShard(t *testing.T) {
	a := histcache.New(histcache.WithID("a"))
	ev, _ := a.GetOrCreate("/CINT7", catalog.NEvents)
	assert.NoError(t, ev.Increment())

	_, err := Merge("m", nil, a, a)
	assert.True(t, errors.Is(err, sentinel.ErrAlreadyMerged))

	merged, err := Merge("m", nil, a)
	assert.NoError(t, err)
	assert.Equal(t, "m", merged.ID())
}
