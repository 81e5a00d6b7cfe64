package aggregate

import (
	"bytes"
	"slices"

	"go-hep.org/x/hep/hbook"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

// Record is the serializable form of an aggregate. Exactly one of Hist,
// Profile and Sparse is set, according to Kind.
type Record struct {
	Name    string        `json:"name"`
	Kind    Kind          `json:"kind"`
	Axes    []Axis        `json:"axes"`
	Hist    []byte        `json:"hist,omitempty"`
	Profile *ProfileState `json:"profile,omitempty"`
	Sparse  *SparseState  `json:"sparse,omitempty"`
}

// Record exports the aggregate content.
func (a *Aggregate) Record() (Record, error) {
	rec := Record{Name: a.name, Kind: a.kind, Axes: slices.Clone(a.axes)}

	var err error

	switch a.kind {
	case KindCounter, KindDistribution:
		rec.Hist, err = encodeH1D(a.hist)
	case KindProfile:
		rec.Profile, err = a.prof.State()
	case KindSparse:
		rec.Sparse = a.sparse.State()
	case KindUnknown:
	default:
	}

	if err != nil {
		return Record{}, ewrap.Wrapf(err, "record %q", a.name)
	}

	return rec, nil
}

// FromRecord rebuilds an aggregate from its exported form.
func FromRecord(rec Record) (*Aggregate, error) {
	a := &Aggregate{name: rec.Name, kind: rec.Kind, axes: slices.Clone(rec.Axes)}

	switch rec.Kind {
	case KindCounter, KindDistribution:
		if len(rec.Axes) != 1 {
			return nil, ewrap.Wrapf(sentinel.ErrShapeMismatch, "record %q: expected one axis, got %d", rec.Name, len(rec.Axes))
		}

		if rec.Kind == KindCounter && !rec.Axes[0].Equal(CounterAxis) {
			return nil, ewrap.Wrapf(sentinel.ErrShapeMismatch, "record %q: counter axis must be [0.5, 1.5] in one bin", rec.Name)
		}

		h, err := decodeH1D(rec.Hist, rec.Axes[0])
		if err != nil {
			return nil, ewrap.Wrapf(err, "record %q", rec.Name)
		}

		a.hist = h
		a.annotate()
	case KindProfile:
		prof, err := ProfileFromState(rec.Profile)
		if err != nil {
			return nil, ewrap.Wrapf(err, "record %q", rec.Name)
		}

		if len(rec.Axes) != 1 || !rec.Axes[0].Equal(prof.Axis()) {
			return nil, ewrap.Wrapf(sentinel.ErrShapeMismatch, "record %q: axes do not match the profile state", rec.Name)
		}

		a.prof = prof
	case KindSparse:
		sparse, err := SparseFromState(rec.Sparse)
		if err != nil {
			return nil, ewrap.Wrapf(err, "record %q", rec.Name)
		}

		if !sameAxes(rec.Axes, sparse.axes) {
			return nil, ewrap.Wrapf(sentinel.ErrShapeMismatch, "record %q: axes do not match the sparse state", rec.Name)
		}

		a.sparse = sparse
	case KindUnknown:
		return nil, ewrap.Wrapf(sentinel.ErrKindMismatch, "record %q has unknown kind", rec.Name)
	default:
		return nil, ewrap.Wrapf(sentinel.ErrKindMismatch, "record %q has kind %d", rec.Name, rec.Kind)
	}

	return a, nil
}

// MarshalYODA renders counter and distribution aggregates in the YODA text
// format understood by the wider HEP tool chain. path is the YODA object path.
func (a *Aggregate) MarshalYODA(path string) ([]byte, error) {
	if a.kind != KindCounter && a.kind != KindDistribution {
		return nil, a.mismatch("MarshalYODA")
	}

	h := cloneH1D(a.hist, a.axes[0])
	h.Ann = hbook.Annotation{"name": a.name, "path": path}

	raw, err := h.MarshalYODA()
	if err != nil {
		return nil, ewrap.Wrapf(err, "yoda %q", path)
	}

	return bytes.TrimSpace(raw), nil
}
