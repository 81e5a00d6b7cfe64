package aggregate

import (
	"math"
	"testing"

	"github.com/longbridgeapp/assert"
)

func TestProfile_MeanPerBin(t *testing.T) {
	prof, err := NewProfile(Axis{Name: "centrality", Bins: 25, Min: 0, Max: 100})
	assert.Nil(t, err)

	prof.Fill(1, 0.2, 1)
	prof.Fill(2, 0.4, 1)
	prof.Fill(50, -1, 1)

	mean, ok := prof.Mean(0)
	assert.True(t, ok)
	assert.True(t, math.Abs(mean-0.3) < 1e-12)

	spread, ok := prof.StdDev(0)
	assert.True(t, ok)
	assert.True(t, math.Abs(spread-0.1) < 1e-9)

	mean, ok = prof.Mean(12)
	assert.True(t, ok)
	assert.Equal(t, -1.0, mean)

	_, ok = prof.Mean(3)
	assert.False(t, ok)

	assert.Equal(t, int64(3), prof.Entries())
	assert.Equal(t, 25, prof.Len())

	first := prof.Cell(1)
	assert.Equal(t, int64(2), first.Entries)
	assert.Equal(t, 2.0, first.SumW)
	assert.Equal(t, 2.0, first.SumW2)
	assert.True(t, math.Abs(first.Mean()-0.3) < 1e-12)

	assert.Equal(t, int64(0), prof.Cell(4).Entries)
	assert.Equal(t, 0.0, prof.Cell(4).Mean())
}

func TestProfile_CellOutflows(t *testing.T) {
	prof, err := NewProfile(Axis{Name: "centrality", Bins: 25, Min: 0, Max: 100})
	assert.Nil(t, err)

	prof.Fill(-5, 2, 1)
	prof.Fill(150, 3, 2)
	prof.Fill(100, 1, 1)

	under := prof.Cell(0)
	assert.Equal(t, int64(1), under.Entries)
	assert.Equal(t, 2.0, under.Mean())

	over := prof.Cell(26)
	assert.Equal(t, int64(2), over.Entries)
	assert.Equal(t, 3.0, over.SumW)
	assert.Equal(t, 5.0, over.SumW2)
	assert.True(t, math.Abs(over.Mean()-7.0/3) < 1e-12)

	assert.Equal(t, int64(0), prof.Cell(27).Entries)
	assert.Equal(t, int64(0), prof.Cell(-1).Entries)
}

func TestProfile_AddMatchesSerial(t *testing.T) {
	axis := Axis{Name: "centrality", Bins: 25, Min: 0, Max: 100}

	left, err := NewProfile(axis)
	assert.Nil(t, err)

	right, err := NewProfile(axis)
	assert.Nil(t, err)

	left.Fill(10, 1, 1)
	right.Fill(10, 3, 1)

	assert.Nil(t, left.Add(right))

	mean, ok := left.Mean(2)
	assert.True(t, ok)
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, int64(2), left.Entries())
}
