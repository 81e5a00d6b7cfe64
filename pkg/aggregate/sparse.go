package aggregate

import (
	"slices"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

// SparseBin holds the accumulated moments of one populated sparse cell.
type SparseBin struct {
	Entries int64   `json:"entries"`
	SumW    float64 `json:"sumw"`
	SumW2   float64 `json:"sumw2"`
}

func (b *SparseBin) fill(w float64) {
	b.Entries++
	b.SumW += w
	b.SumW2 += w * w
}

func (b *SparseBin) add(o SparseBin) {
	b.Entries += o.Entries
	b.SumW += o.SumW
	b.SumW2 += o.SumW2
}

// Sparse is an N-dimensional histogram that only stores populated cells.
// Each axis carries its own underflow and overflow bins, so the full grid
// has prod(Bins+2) cells; only the ones that received a fill are allocated.
type Sparse struct {
	axes    []Axis
	edges   [][]float64
	strides []uint64
	cells   map[uint64]*SparseBin
	total   SparseBin
}

// maxSparseCells bounds the linearized cell index space.
const maxSparseCells = uint64(1) << 62

// NewSparse creates an empty sparse histogram over the given axes.
func NewSparse(axes ...Axis) (*Sparse, error) {
	if len(axes) == 0 {
		return nil, ewrap.Wrap(sentinel.ErrInvalidDimension, "sparse histogram needs at least one axis")
	}

	s := &Sparse{
		axes:    slices.Clone(axes),
		edges:   make([][]float64, len(axes)),
		strides: make([]uint64, len(axes)),
		cells:   make(map[uint64]*SparseBin),
	}

	stride := uint64(1)
	for i, axis := range axes {
		err := axis.Validate()
		if err != nil {
			return nil, err
		}

		s.edges[i] = axis.Edges()
		s.strides[i] = stride

		span := uint64(axis.Bins) + 2
		if stride > maxSparseCells/span {
			return nil, ewrap.Wrapf(sentinel.ErrInvalidDimension, "sparse grid too large at axis %q", axis.Name)
		}

		stride *= span
	}

	return s, nil
}

// Rank returns the number of dimensions.
func (s *Sparse) Rank() int { return len(s.axes) }

// Axes returns a copy of the axes.
func (s *Sparse) Axes() []Axis { return slices.Clone(s.axes) }

// Fill adds weight w at the point x. len(x) must equal Rank.
func (s *Sparse) Fill(x []float64, w float64) error {
	if len(x) != len(s.axes) {
		return ewrap.Wrapf(sentinel.ErrInvalidDimension, "expected %d values, got %d", len(s.axes), len(x))
	}

	var idx uint64
	for d, v := range x {
		idx += uint64(findBin(s.edges[d], v)) * s.strides[d]
	}

	cell, ok := s.cells[idx]
	if !ok {
		cell = &SparseBin{}
		s.cells[idx] = cell
	}

	cell.fill(w)
	s.total.fill(w)

	return nil
}

// Coords returns the per-axis bin numbers (0 underflow, Bins+1 overflow) for x.
func (s *Sparse) Coords(x []float64) ([]int, error) {
	if len(x) != len(s.axes) {
		return nil, ewrap.Wrapf(sentinel.ErrInvalidDimension, "expected %d values, got %d", len(s.axes), len(x))
	}

	coords := make([]int, len(x))
	for d, v := range x {
		coords[d] = findBin(s.edges[d], v)
	}

	return coords, nil
}

// Bin returns the content of the cell at coords.
func (s *Sparse) Bin(coords []int) (SparseBin, bool) {
	idx, ok := s.index(coords)
	if !ok {
		return SparseBin{}, false
	}

	cell, ok := s.cells[idx]
	if !ok {
		return SparseBin{}, false
	}

	return *cell, true
}

// Populated returns the number of allocated cells.
func (s *Sparse) Populated() int { return len(s.cells) }

// Entries returns the number of fills.
func (s *Sparse) Entries() int64 { return s.total.Entries }

// SumW returns the sum of weights over all cells, including outflows.
func (s *Sparse) SumW() float64 { return s.total.SumW }

// SumW2 returns the sum of squared weights over all cells, including outflows.
func (s *Sparse) SumW2() float64 { return s.total.SumW2 }

// Projection returns the sum of weights per bin of axis dim, outflows included:
// element 0 is underflow and element Bins+1 is overflow.
func (s *Sparse) Projection(dim int) ([]float64, error) {
	if dim < 0 || dim >= len(s.axes) {
		return nil, ewrap.Wrapf(sentinel.ErrInvalidDimension, "no axis %d", dim)
	}

	out := make([]float64, s.axes[dim].Bins+2)
	span := uint64(s.axes[dim].Bins) + 2

	for idx, cell := range s.cells {
		out[(idx/s.strides[dim])%span] += cell.SumW
	}

	return out, nil
}

// Each visits populated cells in ascending linear order.
func (s *Sparse) Each(fn func(coords []int, bin SparseBin)) {
	keys := make([]uint64, 0, len(s.cells))
	for idx := range s.cells {
		keys = append(keys, idx)
	}

	slices.Sort(keys)

	for _, idx := range keys {
		fn(s.decode(idx), *s.cells[idx])
	}
}

// Compatible returns an error unless o has the same binning on every axis.
func (s *Sparse) Compatible(o *Sparse) error {
	if len(s.axes) != len(o.axes) {
		return ewrap.Wrapf(sentinel.ErrShapeMismatch, "rank %d vs %d", len(s.axes), len(o.axes))
	}

	for i := range s.axes {
		if !s.axes[i].Equal(o.axes[i]) {
			return ewrap.Wrapf(sentinel.ErrShapeMismatch, "axis %d (%s)", i, s.axes[i].Name)
		}
	}

	return nil
}

// Add sums the cells of o into s.
func (s *Sparse) Add(o *Sparse) error {
	err := s.Compatible(o)
	if err != nil {
		return err
	}

	for idx, src := range o.cells {
		dst, ok := s.cells[idx]
		if !ok {
			dst = &SparseBin{}
			s.cells[idx] = dst
		}

		dst.add(*src)
	}

	s.total.add(o.total)

	return nil
}

// Clone returns a deep copy.
func (s *Sparse) Clone() *Sparse {
	out := &Sparse{
		axes:    slices.Clone(s.axes),
		edges:   make([][]float64, len(s.edges)),
		strides: slices.Clone(s.strides),
		cells:   make(map[uint64]*SparseBin, len(s.cells)),
		total:   s.total,
	}

	for i, e := range s.edges {
		out.edges[i] = slices.Clone(e)
	}

	for idx, cell := range s.cells {
		c := *cell
		out.cells[idx] = &c
	}

	return out
}

// sparseCellBytes approximates the heap cost of one populated cell:
// map slot, key, pointer and the SparseBin itself.
const sparseCellBytes = 8 + 8 + 24 + 48

// SizeBytes estimates the memory held by the histogram.
func (s *Sparse) SizeBytes() int {
	size := 64 + len(s.cells)*sparseCellBytes
	for _, e := range s.edges {
		size += 8 * len(e)
	}

	return size
}

func (s *Sparse) index(coords []int) (uint64, bool) {
	if len(coords) != len(s.axes) {
		return 0, false
	}

	var idx uint64
	for d, c := range coords {
		if c < 0 || c > s.axes[d].Bins+1 {
			return 0, false
		}

		idx += uint64(c) * s.strides[d]
	}

	return idx, true
}

func (s *Sparse) decode(idx uint64) []int {
	coords := make([]int, len(s.axes))
	for d := range s.axes {
		span := uint64(s.axes[d].Bins) + 2
		coords[d] = int((idx / s.strides[d]) % span)
	}

	return coords
}

// SparseCell is the serialized form of one populated cell.
type SparseCell struct {
	Coords []int `json:"coords"`
	SparseBin
}

// SparseState is the serialized form of a sparse histogram.
type SparseState struct {
	Axes  []Axis       `json:"axes"`
	Cells []SparseCell `json:"cells"`
	Total SparseBin    `json:"total"`
}

// State exports the histogram content.
func (s *Sparse) State() *SparseState {
	st := &SparseState{
		Axes:  slices.Clone(s.axes),
		Cells: make([]SparseCell, 0, len(s.cells)),
		Total: s.total,
	}

	s.Each(func(coords []int, bin SparseBin) {
		st.Cells = append(st.Cells, SparseCell{Coords: coords, SparseBin: bin})
	})

	return st
}

// SparseFromState rebuilds a histogram from its exported state.
func SparseFromState(st *SparseState) (*Sparse, error) {
	if st == nil {
		return nil, ewrap.Wrap(sentinel.ErrInvalidCatalog, "nil sparse state")
	}

	s, err := NewSparse(st.Axes...)
	if err != nil {
		return nil, err
	}

	for _, cell := range st.Cells {
		idx, ok := s.index(cell.Coords)
		if !ok {
			return nil, ewrap.Wrapf(sentinel.ErrInvalidDimension, "cell %v out of grid", cell.Coords)
		}

		b := cell.SparseBin
		s.cells[idx] = &b
	}

	s.total = st.Total

	return s, nil
}
