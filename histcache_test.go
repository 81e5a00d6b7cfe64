package histcache

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/aggregate"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

func TestCollection_GetOrCreate_FreshShapes(t *testing.T) {
	tests := []struct {
		name string
		kind aggregate.Kind
		axes []aggregate.Axis
	}{
		{name: catalog.NEvents, kind: aggregate.KindCounter, axes: []aggregate.Axis{{Bins: 1, Min: 0.5, Max: 1.5}}},
		{name: catalog.NormQA, kind: aggregate.KindDistribution, axes: []aggregate.Axis{{Bins: 100, Min: 0, Max: 1}}},
		{name: catalog.NormQB, kind: aggregate.KindDistribution, axes: []aggregate.Axis{{Bins: 100, Min: 0, Max: 1}}},
		{name: catalog.ScalProdQAQB, kind: aggregate.KindProfile, axes: []aggregate.Axis{{Bins: 25, Min: 0, Max: 100}}},
		{name: catalog.MuSparse, kind: aggregate.KindSparse, axes: []aggregate.Axis{
			{Bins: 160, Min: 0, Max: 80},
			{Bins: 25, Min: -4.5, Max: -2.0},
			{Bins: 2, Min: -2, Max: 2},
			{Bins: 36, Min: 0, Max: 2 * math.Pi},
		}},
	}

	c := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, ok := c.GetOrCreate("/CINT7-B-NOPF-MUFAST", tt.name)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, agg.Kind())
			assert.Equal(t, int64(0), agg.Entries())

			axes := agg.Axes()
			assert.Equal(t, len(tt.axes), len(axes))

			for i := range axes {
				assert.True(t, axes[i].Equal(tt.axes[i]))
			}
		})
	}

	assert.Equal(t, len(tests), c.Count())
}

func TestCollection_GetOrCreate_ReferentialStability(t *testing.T) {
	c := New()

	first, ok := c.GetOrCreate("/kINT7", catalog.NEvents)
	assert.True(t, ok)

	second, ok := c.GetOrCreate("/kINT7", catalog.NEvents)
	assert.True(t, ok)
	assert.True(t, first == second)

	assert.NoError(t, first.Fill(1, 1))
	assert.NoError(t, second.Fill(1, 1))

	agg, ok := c.Get("/kINT7", catalog.NEvents)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, 2.0, agg.SumW())
}

func TestCollection_NEventsAccumulates(t *testing.T) {
	c := New()

	const k = 17

	for range k {
		agg, ok := c.GetOrCreate("/CMUL7", catalog.NEvents)
		assert.True(t, ok)
		assert.NoError(t, agg.Increment())
	}

	agg, _ := c.Get("/CMUL7", catalog.NEvents)
	assert.Equal(t, int64(k), agg.Entries())
	assert.Equal(t, float64(k), agg.SumW())
}

func TestCollection_GetOrCreate_Rejections(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := New(WithLogger(zap.New(core)))

	_, ok := c.GetOrCreate("/kINT7", catalog.NEvents)
	assert.True(t, ok)

	tests := []struct {
		name       string
		identifier string
		object     string
	}{
		{name: "unknown name", identifier: "/kINT7", object: "unknownName"},
		{name: "empty name", identifier: "/kINT7", object: ""},
		{name: "empty identifier", identifier: "", object: catalog.NEvents},
		{name: "blank identifier", identifier: "   ", object: catalog.MuSparse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := c.Count()

			agg, ok := c.GetOrCreate(tt.identifier, tt.object)
			assert.False(t, ok)
			assert.True(t, agg == nil)
			assert.Equal(t, before, c.Count())
		})
	}

	assert.Equal(t, len(tests), logs.Len())
	assert.Equal(t, uint64(len(tests)), c.Stats().Rejected)
}

func TestCollection_EstimateSizeGrows(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(WithLogger(zap.New(core)))

	assert.Equal(t, int64(0), c.EstimateSize())

	c.GetOrCreate("/a", catalog.NEvents)
	small := c.EstimateSize()
	assert.True(t, small > 0)

	c.GetOrCreate("/a/10.000000", catalog.MuSparse)
	assert.True(t, c.EstimateSize() > small)

	created := logs.FilterMessage("object created").All()
	assert.Equal(t, 2, len(created))

	_, hasSize := created[1].ContextMap()["size_mb"]
	assert.True(t, hasSize)
}

func TestCollection_KeysAndIdentifiers(t *testing.T) {
	c := New()
	c.GetOrCreate("/b", catalog.NEvents)
	c.GetOrCreate("/a/5.000000", catalog.MuSparse)
	c.GetOrCreate("/a", catalog.NEvents)

	assert.Equal(t, []Key{
		{Identifier: "/a", Name: catalog.NEvents},
		{Identifier: "/a/5.000000", Name: catalog.MuSparse},
		{Identifier: "/b", Name: catalog.NEvents},
	}, c.Keys())
	assert.Equal(t, []string{"/a", "/a/5.000000", "/b"}, c.Identifiers())
}

func TestCollection_CustomCatalog(t *testing.T) {
	cat, err := catalog.New(catalog.Entry{
		Name: "hPt",
		Kind: aggregate.KindDistribution,
		Axes: []aggregate.Axis{{Name: "pt", Bins: 10, Min: 0, Max: 10}},
	})
	assert.NoError(t, err)

	c := New(WithCatalog(cat), WithID("shard-0"), WithName("custom"))
	assert.Equal(t, "shard-0", c.ID())
	assert.Equal(t, "custom", c.Name())

	_, ok := c.GetOrCreate("/x", "hPt")
	assert.True(t, ok)

	_, ok = c.GetOrCreate("/x", catalog.NEvents)
	assert.False(t, ok)
}

// fillMuons fills the same deterministic pseudo-track sequence into c.
func fillMuons(t *testing.T, c *Collection, trig string, from, to int) {
	t.Helper()

	for i := from; i < to; i++ {
		cent := float64(i % 3 * 10)

		ev, ok := c.GetOrCreate("/"+trig, catalog.NEvents)
		assert.True(t, ok)
		assert.NoError(t, ev.Increment())

		sp, ok := c.GetOrCreate(fmt.Sprintf("/%s/%f", trig, cent), catalog.MuSparse)
		assert.True(t, ok)
		assert.NoError(t, sp.FillSparse([]float64{
			float64(i%80) + 0.25,
			-4.4 + float64(i%25)*0.1,
			float64(1 - 2*(i%2)),
			float64(i%36) * 0.17,
		}, 1))

		qa, ok := c.GetOrCreate(fmt.Sprintf("/%s/%f", trig, cent), catalog.NormQA)
		assert.True(t, ok)
		assert.NoError(t, qa.Fill(float64(i%100)/100, 1))

		sp2, ok := c.GetOrCreate(fmt.Sprintf("/%s/%f", trig, cent), catalog.ScalProdQAQB)
		assert.True(t, ok)
		assert.NoError(t, sp2.FillProfile(cent, float64(i%7)-3, 1))
	}
}

func assertSameContent(t *testing.T, want, got *Collection) {
	t.Helper()

	assert.Equal(t, want.Keys(), got.Keys())

	for _, key := range want.Keys() {
		w, _ := want.Get(key.Identifier, key.Name)
		g, _ := got.Get(key.Identifier, key.Name)

		wr, err := w.Record()
		assert.NoError(t, err)

		gr, err := g.Record()
		assert.NoError(t, err)

		assert.Equal(t, w.Entries(), g.Entries())
		assert.Equal(t, w.SumW(), g.SumW())

		if w.Kind() == aggregate.KindSparse {
			assert.Equal(t, wr.Sparse, gr.Sparse)
		}
	}
}

func TestCollection_MergeOverlappingEqualsSerial(t *testing.T) {
	serial := New()
	fillMuons(t, serial, "CMSL7", 0, 400)

	left := New(WithID("shard-0"))
	fillMuons(t, left, "CMSL7", 0, 250)

	right := New(WithID("shard-1"))
	fillMuons(t, right, "CMSL7", 250, 400)

	merged := New(WithID("merged"))
	assert.NoError(t, merged.Merge(left))
	assert.NoError(t, merged.Merge(right))

	assertSameContent(t, serial, merged)
	assert.Equal(t, []string{"merged", "shard-0", "shard-1"}, merged.Lineage())
	assert.Equal(t, uint64(2), merged.Stats().Merges)
}

func TestCollection_MergeDisjointIsUnion(t *testing.T) {
	left := New()
	fillMuons(t, left, "CINT7", 0, 50)

	right := New()
	fillMuons(t, right, "CMUL7", 0, 50)

	assert.NoError(t, left.Merge(right))
	assert.Equal(t, 2*right.Count(), left.Count())

	for _, key := range right.Keys() {
		want, _ := right.Get(key.Identifier, key.Name)
		got, ok := left.Get(key.Identifier, key.Name)
		assert.True(t, ok)
		assert.True(t, want != got)
		assert.Equal(t, want.SumW(), got.SumW())
	}

	// the source is untouched and independent from the destination
	ev, _ := left.Get("/CMUL7", catalog.NEvents)
	assert.NoError(t, ev.Increment())

	src, _ := right.Get("/CMUL7", catalog.NEvents)
	assert.Equal(t, 50.0, src.SumW())
}

func TestCollection_MergeTwiceIsRejected(t *testing.T) {
	dst := New()
	src := New()
	fillMuons(t, src, "CINT7", 0, 10)

	assert.NoError(t, dst.Merge(src))

	err := dst.Merge(src)
	assert.True(t, errors.Is(err, sentinel.ErrAlreadyMerged))

	ev, _ := dst.Get("/CINT7", catalog.NEvents)
	assert.Equal(t, 10.0, ev.SumW())

	// a collection that already folded src cannot be folded either
	other := New()
	assert.NoError(t, other.Merge(src))
	assert.True(t, errors.Is(dst.Merge(other), sentinel.ErrAlreadyMerged))

	assert.True(t, errors.Is(dst.Merge(dst), sentinel.ErrAlreadyMerged))
	assert.True(t, errors.Is(dst.Merge(nil), sentinel.ErrNilCollection))
}

func TestCollection_MergeConflictLeavesDestinationUntouched(t *testing.T) {
	wide, err := catalog.New(
		catalog.Entry{Name: catalog.NEvents, Kind: aggregate.KindCounter, Axes: []aggregate.Axis{aggregate.CounterAxis}},
		catalog.Entry{Name: catalog.NormQA, Kind: aggregate.KindDistribution, Axes: []aggregate.Axis{{Bins: 50, Min: 0, Max: 1}}},
	)
	assert.NoError(t, err)

	dst := New()
	ev, _ := dst.GetOrCreate("/a", catalog.NEvents)
	assert.NoError(t, ev.Increment())
	dst.GetOrCreate("/a", catalog.NormQA)

	src := New(WithCatalog(wide))
	sev, _ := src.GetOrCreate("/a", catalog.NEvents)
	assert.NoError(t, sev.Increment())
	src.GetOrCreate("/a", catalog.NormQA)
	src.GetOrCreate("/b", catalog.NEvents)

	err = dst.Merge(src)
	assert.True(t, errors.Is(err, sentinel.ErrShapeMismatch))

	assert.Equal(t, 1.0, ev.SumW())
	assert.Equal(t, 2, dst.Count())
	assert.Equal(t, []string{dst.ID()}, dst.Lineage())
}

func TestApplyMiddleware(t *testing.T) {
	c := New()

	var calls []string

	tag := func(name string) Middleware {
		return func(next Service) Service {
			calls = append(calls, name)

			return next
		}
	}

	svc := ApplyMiddleware(c.AsService(), tag("first"), tag("second"))
	assert.Equal(t, []string{"first", "second"}, calls)

	agg, ok := svc.GetOrCreate(t.Context(), "/kINT7", catalog.NEvents)
	assert.True(t, ok)
	assert.NoError(t, agg.Increment())
	assert.Equal(t, 1, svc.Count(t.Context()))
	assert.Equal(t, c.EstimateSize(), svc.EstimateSize())
	assert.Equal(t, uint64(1), svc.GetStats().Created)
}

func TestCollection_ReverseMergesDoNotDeadlock(t *testing.T) {
	a := New(WithID("a"))
	b := New(WithID("b"))
	// disjoint keys: each side only inserts clones into the other
	fillMuons(t, a, "CINT7", 0, 50)
	fillMuons(t, b, "CMUL7", 50, 100)

	var wg sync.WaitGroup

	errs := make([]error, 2)

	wg.Go(func() { errs[0] = a.Merge(b) })
	wg.Go(func() { errs[1] = b.Merge(a) })

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reverse merges did not finish")
	}

	// at least one side folds the other in; both may when the lineages are read first
	assert.True(t, errs[0] == nil || errs[1] == nil)
}
