package aggregate

import (
	"math"

	"go-hep.org/x/hep/hbook"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

// Profile accumulates (x, y) pairs and reports the weighted mean of y per x bin.
//
// It is kept as three parallel hbook histograms over the same binning, holding
// the per-bin sums of w, w*y and w*y^2. Merging two profiles is therefore a
// bin-by-bin histogram addition.
type Profile struct {
	axis   Axis
	sumW   *hbook.H1D
	sumWY  *hbook.H1D
	sumWY2 *hbook.H1D
}

// NewProfile creates an empty profile over axis.
func NewProfile(axis Axis) (*Profile, error) {
	err := axis.Validate()
	if err != nil {
		return nil, err
	}

	return &Profile{
		axis:   axis,
		sumW:   hbook.NewH1D(axis.Bins, axis.Min, axis.Max),
		sumWY:  hbook.NewH1D(axis.Bins, axis.Min, axis.Max),
		sumWY2: hbook.NewH1D(axis.Bins, axis.Min, axis.Max),
	}, nil
}

// Fill records y at x with weight w.
func (p *Profile) Fill(x, y, w float64) {
	p.sumW.Fill(x, w)
	p.sumWY.Fill(x, w*y)
	p.sumWY2.Fill(x, w*y*y)
}

// Axis returns the x binning.
func (p *Profile) Axis() Axis { return p.axis }

// Len returns the number of in-range bins.
func (p *Profile) Len() int { return p.sumW.Len() }

// Entries returns the number of fills, outflows included.
func (p *Profile) Entries() int64 { return p.sumW.Entries() }

// SumW returns the total weight, outflows included.
func (p *Profile) SumW() float64 { return p.sumW.SumW() }

// Mean returns the weighted mean of y in the i-th in-range bin (0-based).
// ok is false when the bin has no weight.
func (p *Profile) Mean(i int) (mean float64, ok bool) {
	w := p.sumW.Binning.Bins[i].SumW()
	if w == 0 {
		return 0, false
	}

	return p.sumWY.Binning.Bins[i].SumW() / w, true
}

// ProfileBin is the content of one profile bin.
type ProfileBin struct {
	Entries int64
	SumW    float64
	SumW2   float64
	SumWY   float64
}

// Mean returns the weighted mean of y, or zero for an empty bin.
func (b ProfileBin) Mean() float64 {
	if b.SumW == 0 {
		return 0
	}

	return b.SumWY / b.SumW
}

// Cell returns bin i indexed like axis coordinates: 0 is the underflow,
// 1..Bins the in-range bins and Bins+1 the overflow.
func (p *Profile) Cell(i int) ProfileBin {
	w := BinDist(p.sumW, i)
	wy := BinDist(p.sumWY, i)

	return ProfileBin{Entries: w.Entries(), SumW: w.SumW(), SumW2: w.SumW2(), SumWY: wy.SumW()}
}

// StdDev returns the weighted spread of y in the i-th in-range bin.
func (p *Profile) StdDev(i int) (float64, bool) {
	mean, ok := p.Mean(i)
	if !ok {
		return 0, false
	}

	w := p.sumW.Binning.Bins[i].SumW()
	variance := p.sumWY2.Binning.Bins[i].SumW()/w - mean*mean

	if variance < 0 { // rounding
		variance = 0
	}

	return math.Sqrt(variance), true
}

// Add sums o into p. Both profiles must share the same binning.
func (p *Profile) Add(o *Profile) error {
	if !p.axis.Equal(o.axis) {
		return ewrap.Wrapf(sentinel.ErrShapeMismatch, "profile axis %s", p.axis.Name)
	}

	p.sumW = hbook.AddH1D(p.sumW, o.sumW)
	p.sumWY = hbook.AddH1D(p.sumWY, o.sumWY)
	p.sumWY2 = hbook.AddH1D(p.sumWY2, o.sumWY2)

	return nil
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	return &Profile{
		axis:   p.axis,
		sumW:   cloneH1D(p.sumW, p.axis),
		sumWY:  cloneH1D(p.sumWY, p.axis),
		sumWY2: cloneH1D(p.sumWY2, p.axis),
	}
}

// SizeBytes estimates the memory held by the profile.
func (p *Profile) SizeBytes() int { return 3 * h1dSizeBytes(p.axis.Bins) }

// ProfileState is the serialized form of a profile. Each histogram is kept in
// hbook's binary encoding.
type ProfileState struct {
	Axis   Axis   `json:"axis"`
	SumW   []byte `json:"sumw"`
	SumWY  []byte `json:"sumwy"`
	SumWY2 []byte `json:"sumwy2"`
}

// State exports the profile content.
func (p *Profile) State() (*ProfileState, error) {
	st := &ProfileState{Axis: p.axis}

	var err error

	st.SumW, err = encodeH1D(p.sumW)
	if err != nil {
		return nil, err
	}

	st.SumWY, err = encodeH1D(p.sumWY)
	if err != nil {
		return nil, err
	}

	st.SumWY2, err = encodeH1D(p.sumWY2)
	if err != nil {
		return nil, err
	}

	return st, nil
}

// ProfileFromState rebuilds a profile from its exported state.
func ProfileFromState(st *ProfileState) (*Profile, error) {
	if st == nil {
		return nil, ewrap.Wrap(sentinel.ErrInvalidCatalog, "nil profile state")
	}

	hists := make([]*hbook.H1D, 0, 3)

	for _, raw := range [][]byte{st.SumW, st.SumWY, st.SumWY2} {
		h, err := decodeH1D(raw, st.Axis)
		if err != nil {
			return nil, err
		}

		hists = append(hists, h)
	}

	return &Profile{axis: st.Axis, sumW: hists[0], sumWY: hists[1], sumWY2: hists[2]}, nil
}

// h1dBinBytes approximates one hbook bin: range plus weight and x moments.
const h1dBinBytes = 2*8 + 8 + 4*8

// h1dSizeBytes estimates the memory held by an hbook.H1D with n bins and two outflow bins.
func h1dSizeBytes(n int) int { return 128 + (n+2)*h1dBinBytes }

// cloneH1D copies h by adding it onto an empty histogram of the same binning.
// BinDist returns the distribution of bin i of h indexed like axis
// coordinates: 0 is the underflow, 1..Len the in-range bins and Len+1 the
// overflow. Out of range indices yield an empty distribution.
func BinDist(h *hbook.H1D, i int) hbook.Dist1D {
	n := len(h.Binning.Bins)

	switch {
	case i == 0:
		return h.Binning.Outflows[0]
	case i == n+1:
		return h.Binning.Outflows[1]
	case i > 0 && i <= n:
		return h.Binning.Bins[i-1].Dist
	default:
		return hbook.Dist1D{}
	}
}

func cloneH1D(h *hbook.H1D, axis Axis) *hbook.H1D {
	return hbook.AddH1D(hbook.NewH1D(axis.Bins, axis.Min, axis.Max), h)
}

func sameBinning(h *hbook.H1D, axis Axis) bool {
	return h.Len() == axis.Bins && h.XMin() == axis.Min && h.XMax() == axis.Max
}

func encodeH1D(h *hbook.H1D) ([]byte, error) {
	raw, err := h.MarshalBinary()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to encode histogram")
	}

	return raw, nil
}

func decodeH1D(raw []byte, axis Axis) (*hbook.H1D, error) {
	if len(raw) == 0 {
		return nil, ewrap.Wrapf(sentinel.ErrShapeMismatch, "empty histogram for axis %s", axis.Name)
	}

	h := &hbook.H1D{}

	err := h.UnmarshalBinary(raw)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to decode histogram")
	}

	if !sameBinning(h, axis) {
		return nil, ewrap.Wrapf(sentinel.ErrShapeMismatch, "histogram does not match axis %s", axis.Name)
	}

	return h, nil
}
