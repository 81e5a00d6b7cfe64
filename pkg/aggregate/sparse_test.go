package aggregate

import (
	"errors"
	"math"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

func TestAxis_FindBinEdgeConvention(t *testing.T) {
	axis := Axis{Name: "Pt", Bins: 160, Min: 0, Max: 80}
	edges := axis.Edges()

	tests := []struct {
		name string
		x    float64
		want int
	}{
		{name: "below range", x: -0.1, want: 0},
		{name: "lower edge is inclusive", x: 0, want: 1},
		{name: "inner edge opens the next bin", x: 0.5, want: 2},
		{name: "just below inner edge", x: math.Nextafter(0.5, 0), want: 1},
		{name: "last bin", x: 79.9, want: 160},
		{name: "upper edge is overflow", x: 80, want: 161},
		{name: "NaN is overflow", x: math.NaN(), want: 161},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findBin(edges, tt.x))
		})
	}
}

func TestAxis_EdgesEndExactly(t *testing.T) {
	axis := Axis{Name: "Phi", Bins: 36, Min: 0, Max: 2 * math.Pi}
	edges := axis.Edges()

	assert.Equal(t, 37, len(edges))
	assert.Equal(t, 0.0, edges[0])
	assert.Equal(t, 2*math.Pi, edges[36])
}

func TestSparse_BinEdgeFillsAreStable(t *testing.T) {
	sparse, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	etaEdges := sparse.Axes()[1].Edges()
	// every coordinate sits exactly on a bin edge
	point := []float64{40, etaEdges[10], 0, 2 * math.Pi}

	coords, err := sparse.Coords(point)
	assert.Nil(t, err)
	assert.Equal(t, []int{81, 11, 2, 37}, coords)

	for range 5 {
		assert.Nil(t, sparse.Fill(point, 1))
	}

	assert.Equal(t, 1, sparse.Populated())

	bin, ok := sparse.Bin(coords)
	assert.True(t, ok)
	assert.Equal(t, int64(5), bin.Entries)
	assert.Equal(t, 5.0, bin.SumW)
	assert.Equal(t, 5.0, bin.SumW2)
}

func TestSparse_FillRejectsWrongArity(t *testing.T) {
	sparse, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	err = sparse.Fill([]float64{1, 2, 3}, 1)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidDimension))
	assert.Equal(t, int64(0), sparse.Entries())
	assert.Equal(t, 0, sparse.Populated())
}

func TestSparse_NewValidatesAxes(t *testing.T) {
	_, err := NewSparse()
	assert.True(t, errors.Is(err, sentinel.ErrInvalidDimension))

	_, err = NewSparse(Axis{Name: "bad", Bins: 0, Min: 0, Max: 1})
	assert.True(t, errors.Is(err, sentinel.ErrInvalidAxis))
}

func TestSparse_AddEqualsSerialFill(t *testing.T) {
	points := [][]float64{
		{1.1, -3.1, 1.0 / 3, 0.2},
		{1.1, -3.1, 1.0 / 3, 0.2},
		{12, -2.6, -1.0 / 3, 4},
		{90, -5, 0.3, 7},
	}

	left, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	right, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	serial, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	for i, p := range points {
		if i%2 == 0 {
			assert.Nil(t, left.Fill(p, 1))
		} else {
			assert.Nil(t, right.Fill(p, 1))
		}

		assert.Nil(t, serial.Fill(p, 1))
	}

	assert.Nil(t, left.Add(right))
	assert.Equal(t, serial.State(), left.State())
}

func TestSparse_AddRejectsDifferentBinning(t *testing.T) {
	left, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	axes := muonAxes()
	axes[0].Bins = 80

	right, err := NewSparse(axes...)
	assert.Nil(t, err)

	err = left.Add(right)
	assert.True(t, errors.Is(err, sentinel.ErrShapeMismatch))
}

func TestSparse_Projection(t *testing.T) {
	sparse, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	assert.Nil(t, sparse.Fill([]float64{0.2, -3, 1, 1}, 1))
	assert.Nil(t, sparse.Fill([]float64{0.3, -2.5, -1, 2}, 2))
	assert.Nil(t, sparse.Fill([]float64{85, -3, 1, 1}, 1))

	proj, err := sparse.Projection(0)
	assert.Nil(t, err)
	assert.Equal(t, 162, len(proj))
	assert.Equal(t, 3.0, proj[1])
	assert.Equal(t, 1.0, proj[161])

	_, err = sparse.Projection(4)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidDimension))
}

func TestSparse_StateRoundTrip(t *testing.T) {
	sparse, err := NewSparse(muonAxes()...)
	assert.Nil(t, err)

	assert.Nil(t, sparse.Fill([]float64{3, -3, 1, 1}, 0.5))
	assert.Nil(t, sparse.Fill([]float64{-1, -6, 9, 9}, 2))

	restored, err := SparseFromState(sparse.State())
	assert.Nil(t, err)
	assert.Equal(t, sparse.State(), restored.State())
	assert.Equal(t, sparse.SumW(), restored.SumW())
}
