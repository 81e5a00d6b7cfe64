// Package aggregate provides the mergeable statistical accumulators stored in a
// histcache collection.
//
// An Aggregate is a closed tagged variant over four kinds:
//
//   - counter: a 1-bin histogram over [0.5, 1.5], incremented once per call
//   - distribution: a fixed-range 1-D histogram
//   - profile: the weighted mean of y per bin of x
//   - sparse: an N-D histogram storing populated cells only
//
// Counter, distribution and profile are backed by go-hep hbook histograms; the
// sparse kind is implemented in this package. All kinds are strictly additive and
// can be summed with another aggregate of the same kind and binning.
package aggregate

import (
	"slices"

	"go-hep.org/x/hep/hbook"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

// CounterAxis is the fixed binning of counter aggregates.
//
//nolint:gochecknoglobals
var CounterAxis = Axis{Name: "count", Bins: 1, Min: 0.5, Max: 1.5}

// Aggregate is one named accumulator. The zero value is not usable; build one
// with NewCounter, NewDistribution, NewProfile or NewSparse... helpers.
type Aggregate struct {
	name   string
	kind   Kind
	axes   []Axis
	hist   *hbook.H1D // counter and distribution
	prof   *Profile
	sparse *Sparse
}

// NewCounter creates a counter aggregate.
func NewCounter(name string) *Aggregate {
	a := &Aggregate{
		name: name,
		kind: KindCounter,
		axes: []Axis{CounterAxis},
		hist: hbook.NewH1D(CounterAxis.Bins, CounterAxis.Min, CounterAxis.Max),
	}
	a.annotate()

	return a
}

// NewDistribution creates a 1-D histogram aggregate.
func NewDistribution(name string, axis Axis) (*Aggregate, error) {
	err := axis.Validate()
	if err != nil {
		return nil, err
	}

	a := &Aggregate{
		name: name,
		kind: KindDistribution,
		axes: []Axis{axis},
		hist: hbook.NewH1D(axis.Bins, axis.Min, axis.Max),
	}
	a.annotate()

	return a, nil
}

// NewProfileAggregate creates a profile aggregate.
func NewProfileAggregate(name string, axis Axis) (*Aggregate, error) {
	prof, err := NewProfile(axis)
	if err != nil {
		return nil, err
	}

	return &Aggregate{name: name, kind: KindProfile, axes: []Axis{axis}, prof: prof}, nil
}

// NewSparseAggregate creates a sparse N-D histogram aggregate.
func NewSparseAggregate(name string, axes ...Axis) (*Aggregate, error) {
	sparse, err := NewSparse(axes...)
	if err != nil {
		return nil, err
	}

	return &Aggregate{name: name, kind: KindSparse, axes: slices.Clone(axes), sparse: sparse}, nil
}

// New builds an aggregate of the given kind. Counters ignore axes.
func New(name string, kind Kind, axes ...Axis) (*Aggregate, error) {
	switch kind {
	case KindCounter:
		return NewCounter(name), nil
	case KindDistribution, KindProfile:
		if len(axes) != 1 {
			return nil, ewrap.Wrapf(sentinel.ErrInvalidDimension, "%s %q needs exactly one axis, got %d", kind, name, len(axes))
		}

		if kind == KindDistribution {
			return NewDistribution(name, axes[0])
		}

		return NewProfileAggregate(name, axes[0])
	case KindSparse:
		return NewSparseAggregate(name, axes...)
	case KindUnknown:
		return nil, ewrap.Wrapf(sentinel.ErrKindMismatch, "cannot build %q of unknown kind", name)
	default:
		return nil, ewrap.Wrapf(sentinel.ErrKindMismatch, "cannot build %q of kind %d", name, kind)
	}
}

// Name returns the object name.
func (a *Aggregate) Name() string { return a.name }

// Kind returns the aggregate variant.
func (a *Aggregate) Kind() Kind { return a.kind }

// Axes returns a copy of the binning.
func (a *Aggregate) Axes() []Axis { return slices.Clone(a.axes) }

// H1D exposes the underlying histogram of counter and distribution aggregates.
func (a *Aggregate) H1D() *hbook.H1D { return a.hist }

// Profile exposes the underlying profile, nil for other kinds.
func (a *Aggregate) Profile() *Profile { return a.prof }

// Sparse exposes the underlying sparse histogram, nil for other kinds.
func (a *Aggregate) Sparse() *Sparse { return a.sparse }

// Increment adds one unit to a counter.
func (a *Aggregate) Increment() error {
	if a.kind != KindCounter {
		return a.mismatch("Increment")
	}

	a.hist.Fill(1, 1)

	return nil
}

// Fill adds weight w at x. Counters always fill their single bin and ignore x.
func (a *Aggregate) Fill(x, w float64) error {
	switch a.kind {
	case KindCounter:
		a.hist.Fill(1, w)
	case KindDistribution:
		a.hist.Fill(x, w)
	case KindUnknown, KindProfile, KindSparse:
		return a.mismatch("Fill")
	default:
		return a.mismatch("Fill")
	}

	return nil
}

// FillProfile records y at x with weight w.
func (a *Aggregate) FillProfile(x, y, w float64) error {
	if a.kind != KindProfile {
		return a.mismatch("FillProfile")
	}

	a.prof.Fill(x, y, w)

	return nil
}

// FillSparse adds weight w at the point values.
func (a *Aggregate) FillSparse(values []float64, w float64) error {
	if a.kind != KindSparse {
		return a.mismatch("FillSparse")
	}

	return a.sparse.Fill(values, w)
}

// Entries returns the number of fills.
func (a *Aggregate) Entries() int64 {
	switch a.kind {
	case KindCounter, KindDistribution:
		return a.hist.Entries()
	case KindProfile:
		return a.prof.Entries()
	case KindSparse:
		return a.sparse.Entries()
	case KindUnknown:
		return 0
	default:
		return 0
	}
}

// SumW returns the total accumulated weight, outflows included.
func (a *Aggregate) SumW() float64 {
	switch a.kind {
	case KindCounter, KindDistribution:
		return a.hist.SumW()
	case KindProfile:
		return a.prof.SumW()
	case KindSparse:
		return a.sparse.SumW()
	case KindUnknown:
		return 0
	default:
		return 0
	}
}

// Compatible returns an error unless o can be summed into a. Add checks the
// same conditions, so a nil result guarantees Add succeeds.
func (a *Aggregate) Compatible(o *Aggregate) error {
	if a.kind != o.kind {
		return ewrap.Wrapf(sentinel.ErrKindMismatch, "%q: %s vs %s", a.name, a.kind, o.kind)
	}

	if len(a.axes) != len(o.axes) {
		return ewrap.Wrapf(sentinel.ErrShapeMismatch, "%q: rank %d vs %d", a.name, len(a.axes), len(o.axes))
	}

	for i := range a.axes {
		if !a.axes[i].Equal(o.axes[i]) {
			return ewrap.Wrapf(sentinel.ErrShapeMismatch, "%q: axis %d", a.name, i)
		}
	}

	switch a.kind {
	case KindCounter, KindDistribution:
		if !sameBinning(o.hist, a.axes[0]) {
			return ewrap.Wrapf(sentinel.ErrShapeMismatch, "%q: histogram binning", a.name)
		}
	case KindProfile:
		if !a.prof.axis.Equal(o.prof.axis) {
			return ewrap.Wrapf(sentinel.ErrShapeMismatch, "%q: profile axis %s", a.name, a.prof.axis.Name)
		}
	case KindSparse:
		err := a.sparse.Compatible(o.sparse)
		if err != nil {
			return ewrap.Wrapf(err, "%q", a.name)
		}
	case KindUnknown:
		return a.mismatch("Compatible")
	default:
		return a.mismatch("Compatible")
	}

	return nil
}

func sameAxes(a, b []Axis) bool {
	return slices.EqualFunc(a, b, Axis.Equal)
}

// Add sums o into a. a keeps its identity; o is left untouched.
func (a *Aggregate) Add(o *Aggregate) error {
	err := a.Compatible(o)
	if err != nil {
		return err
	}

	switch a.kind {
	case KindCounter, KindDistribution:
		a.hist = hbook.AddH1D(a.hist, o.hist)
		a.annotate()
	case KindProfile:
		return a.prof.Add(o.prof)
	case KindSparse:
		return a.sparse.Add(o.sparse)
	case KindUnknown:
		return a.mismatch("Add")
	default:
		return a.mismatch("Add")
	}

	return nil
}

// Clone returns a deep copy.
func (a *Aggregate) Clone() *Aggregate {
	out := &Aggregate{name: a.name, kind: a.kind, axes: slices.Clone(a.axes)}

	switch a.kind {
	case KindCounter, KindDistribution:
		out.hist = cloneH1D(a.hist, a.axes[0])
		out.annotate()
	case KindProfile:
		out.prof = a.prof.Clone()
	case KindSparse:
		out.sparse = a.sparse.Clone()
	case KindUnknown:
	default:
	}

	return out
}

// SizeBytes estimates the memory held by the aggregate.
func (a *Aggregate) SizeBytes() int {
	const header = 64

	switch a.kind {
	case KindCounter, KindDistribution:
		return header + h1dSizeBytes(a.axes[0].Bins)
	case KindProfile:
		return header + a.prof.SizeBytes()
	case KindSparse:
		return header + a.sparse.SizeBytes()
	case KindUnknown:
		return header
	default:
		return header
	}
}

func (a *Aggregate) annotate() {
	if a.hist.Ann == nil {
		a.hist.Ann = hbook.Annotation{}
	}

	a.hist.Ann["name"] = a.name
}

func (a *Aggregate) mismatch(op string) error {
	return ewrap.Wrapf(sentinel.ErrKindMismatch, "%s on %s %q", op, a.kind, a.name)
}
