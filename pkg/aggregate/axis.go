package aggregate

import (
	"math"
	"sort"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

// Axis describes a fixed-width binning over [Min, Max).
//
// Bin numbering follows the usual histogram convention: 0 is the underflow bin,
// 1..Bins are the in-range bins and Bins+1 is the overflow bin. A value equal to
// a bin's lower edge belongs to that bin; a value equal to Max is overflow.
type Axis struct {
	Name  string  `json:"name"            yaml:"name"`
	Title string  `json:"title,omitempty" yaml:"title,omitempty"`
	Bins  int     `json:"bins"            yaml:"bins"`
	Min   float64 `json:"min"             yaml:"min"`
	Max   float64 `json:"max"             yaml:"max"`
}

// Validate returns an error if the axis cannot be binned.
func (a Axis) Validate() error {
	if a.Bins <= 0 {
		return ewrap.Wrapf(sentinel.ErrInvalidAxis, "axis %q: bins must be positive, got %d", a.Name, a.Bins)
	}

	if math.IsNaN(a.Min) || math.IsNaN(a.Max) || math.IsInf(a.Min, 0) || math.IsInf(a.Max, 0) {
		return ewrap.Wrapf(sentinel.ErrInvalidAxis, "axis %q: range must be finite", a.Name)
	}

	if a.Max <= a.Min {
		return ewrap.Wrapf(sentinel.ErrInvalidAxis, "axis %q: empty range [%g, %g]", a.Name, a.Min, a.Max)
	}

	return nil
}

// Edges returns the Bins+1 bin edges. Edge i is computed as Min + i*(Max-Min)/Bins
// so that every consumer sees exactly the same floating point boundaries.
func (a Axis) Edges() []float64 {
	edges := make([]float64, a.Bins+1)
	for i := range edges {
		edges[i] = a.Min + float64(i)*(a.Max-a.Min)/float64(a.Bins)
	}

	edges[a.Bins] = a.Max

	return edges
}

// Equal reports whether two axes share the same binning. Names and titles are ignored.
func (a Axis) Equal(b Axis) bool {
	return a.Bins == b.Bins && a.Min == b.Min && a.Max == b.Max
}

// findBin locates x in edges: 0 underflow, len(edges) overflow.
// NaN compares false against every edge and therefore lands in overflow.
func findBin(edges []float64, x float64) int {
	return sort.Search(len(edges), func(i int) bool { return edges[i] > x })
}
