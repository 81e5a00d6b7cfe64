package aggregate

import (
	"errors"
	"math"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

func muonAxes() []Axis {
	return []Axis{
		{Name: "Pt", Bins: 160, Min: 0, Max: 80},
		{Name: "Eta", Bins: 25, Min: -4.5, Max: -2},
		{Name: "Charge", Bins: 2, Min: -2, Max: 2},
		{Name: "Phi", Bins: 36, Min: 0, Max: 2 * math.Pi},
	}
}

func TestCounter_IncrementAccumulates(t *testing.T) {
	counter := NewCounter("nevents")

	for range 7 {
		assert.Nil(t, counter.Increment())
	}

	assert.Equal(t, KindCounter, counter.Kind())
	assert.Equal(t, int64(7), counter.Entries())
	assert.Equal(t, 7.0, counter.SumW())
	assert.Equal(t, 1, counter.H1D().Len())
	assert.Equal(t, 0.5, counter.H1D().XMin())
	assert.Equal(t, 1.5, counter.H1D().XMax())
}

func TestAggregate_KindMismatch(t *testing.T) {
	dist, err := NewDistribution("hNormQA", Axis{Name: "norm", Bins: 100, Min: 0, Max: 1})
	assert.Nil(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{name: "increment distribution", call: dist.Increment},
		{name: "profile fill on distribution", call: func() error { return dist.FillProfile(1, 1, 1) }},
		{name: "sparse fill on distribution", call: func() error { return dist.FillSparse([]float64{1}, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.Is(err, sentinel.ErrKindMismatch))
		})
	}

	assert.Equal(t, int64(0), dist.Entries())
}

func TestNew_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		axes    []Axis
		wantErr error
	}{
		{name: "counter", kind: KindCounter},
		{name: "distribution", kind: KindDistribution, axes: []Axis{{Bins: 100, Min: 0, Max: 1}}},
		{name: "profile", kind: KindProfile, axes: []Axis{{Bins: 25, Min: 0, Max: 100}}},
		{name: "sparse", kind: KindSparse, axes: muonAxes()},
		{name: "distribution without axis", kind: KindDistribution, wantErr: sentinel.ErrInvalidDimension},
		{name: "empty range", kind: KindProfile, axes: []Axis{{Bins: 10, Min: 1, Max: 1}}, wantErr: sentinel.ErrInvalidAxis},
		{name: "unknown kind", kind: KindUnknown, wantErr: sentinel.ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := New(tt.name, tt.kind, tt.axes...)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Nil(t, agg)

				return
			}

			assert.Nil(t, err)
			assert.Equal(t, tt.kind, agg.Kind())
			assert.Equal(t, tt.name, agg.Name())
		})
	}
}

func TestAggregate_AddDistribution(t *testing.T) {
	axis := Axis{Name: "norm", Bins: 100, Min: 0, Max: 1}

	left, err := NewDistribution("hNormQA", axis)
	assert.Nil(t, err)

	right, err := NewDistribution("hNormQA", axis)
	assert.Nil(t, err)

	serial, err := NewDistribution("hNormQA", axis)
	assert.Nil(t, err)

	for i, x := range []float64{0.05, 0.15, 0.5, 0.99, 1.2} {
		target := left
		if i%2 == 1 {
			target = right
		}

		assert.Nil(t, target.Fill(x, 1))
		assert.Nil(t, serial.Fill(x, 1))
	}

	before := left
	assert.Nil(t, left.Add(right))
	assert.True(t, before == left)

	assert.Equal(t, serial.Entries(), left.Entries())
	assert.Equal(t, serial.SumW(), left.SumW())

	for i := range axis.Bins {
		assert.Equal(t, serial.H1D().Binning.Bins[i].SumW(), left.H1D().Binning.Bins[i].SumW())
	}

	// the source is not modified
	assert.Equal(t, int64(2), right.Entries())
}

func TestAggregate_AddRejectsIncompatible(t *testing.T) {
	dist, err := NewDistribution("h", Axis{Bins: 100, Min: 0, Max: 1})
	assert.Nil(t, err)

	other, err := NewDistribution("h", Axis{Bins: 50, Min: 0, Max: 1})
	assert.Nil(t, err)

	err = dist.Add(other)
	assert.True(t, errors.Is(err, sentinel.ErrShapeMismatch))

	err = dist.Add(NewCounter("h"))
	assert.True(t, errors.Is(err, sentinel.ErrKindMismatch))
}

func TestAggregate_CloneIsIndependent(t *testing.T) {
	sparse, err := NewSparseAggregate("MuSparse", muonAxes()...)
	assert.Nil(t, err)

	assert.Nil(t, sparse.FillSparse([]float64{1.2, -3, -1, 0.3}, 1))

	clone := sparse.Clone()
	assert.Nil(t, clone.FillSparse([]float64{1.2, -3, -1, 0.3}, 1))

	assert.Equal(t, int64(1), sparse.Entries())
	assert.Equal(t, int64(2), clone.Entries())
}

func TestAggregate_SizeBytesGrowsWithSparseCells(t *testing.T) {
	sparse, err := NewSparseAggregate("MuSparse", muonAxes()...)
	assert.Nil(t, err)

	empty := sparse.SizeBytes()

	assert.Nil(t, sparse.FillSparse([]float64{1, -3, 1, 1}, 1))
	assert.Nil(t, sparse.FillSparse([]float64{2, -3, 1, 1}, 1))

	assert.True(t, sparse.SizeBytes() > empty)
	assert.True(t, NewCounter("nevents").SizeBytes() > 0)
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindCounter, KindDistribution, KindProfile, KindSparse} {
		text, err := k.MarshalText()
		assert.Nil(t, err)

		var parsed Kind
		assert.Nil(t, parsed.UnmarshalText(text))
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("histogram3d")
	assert.True(t, errors.Is(err, sentinel.ErrKindMismatch))
}

func TestAggregate_CompatibleChecksInnerState(t *testing.T) {
	good, err := NewSparseAggregate("MuSparse", muonAxes()...)
	assert.Nil(t, err)

	narrow := muonAxes()
	narrow[0].Bins = 80

	inner, err := NewSparse(narrow...)
	assert.Nil(t, err)

	forged := &Aggregate{name: "MuSparse", kind: KindSparse, axes: muonAxes(), sparse: inner}

	err = good.Compatible(forged)
	assert.True(t, errors.Is(err, sentinel.ErrShapeMismatch))
	assert.True(t, errors.Is(good.Add(forged), sentinel.ErrShapeMismatch))
	assert.Equal(t, int64(0), good.Entries())
}
