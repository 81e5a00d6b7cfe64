// Package export writes the bins of a merged collection to ClickHouse, one
// row per populated bin, so that runs can be compared with SQL.
package export

import (
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// Row is one bin of one aggregate. Coords holds the per-axis bin index:
// 0 is the underflow, 1..Bins the in-range bins and Bins+1 the overflow.
// Counters export a single row with empty Coords.
type Row struct {
	Run        string
	Snapshot   string
	CreatedAt  time.Time
	Identifier string
	Object     string
	Kind       string
	Coords     []int32
	Center     []float64
	Entries    uint64
	SumW       float64
	SumW2      float64
	// Mean is the mean of y for profile bins and zero otherwise.
	Mean float64
}

// Rows flattens snap into one row per populated bin, outflow bins included.
// Empty bins are skipped.
func Rows(run string, snap *histcache.Snapshot) ([]Row, error) {
	var rows []Row

	for _, obj := range snap.Objects {
		agg, err := aggregate.FromRecord(obj.Record)
		if err != nil {
			return nil, ewrap.Wrapf(err, "export %s:%s", obj.Identifier, obj.Record.Name)
		}

		base := Row{
			Run:        run,
			Snapshot:   snap.ID,
			CreatedAt:  snap.CreatedAt,
			Identifier: obj.Identifier,
			Object:     agg.Name(),
			Kind:       agg.Kind().String(),
		}

		rows = append(rows, aggregateRows(base, agg)...)
	}

	return rows, nil
}

func aggregateRows(base Row, agg *aggregate.Aggregate) []Row {
	var rows []Row

	switch agg.Kind() {
	case aggregate.KindCounter:
		row := base
		row.Entries = uint64(max(agg.Entries(), 0))
		row.SumW = agg.SumW()
		rows = append(rows, row)
	case aggregate.KindDistribution:
		axis := agg.Axes()[0]
		centers := binCenters(axis)

		for i := range axis.Bins + 2 {
			bin := aggregate.BinDist(agg.H1D(), i)
			if bin.Entries() == 0 {
				continue
			}

			row := base
			row.Coords = []int32{int32(i)}
			row.Center = []float64{centers[i]}
			row.Entries = uint64(bin.Entries())
			row.SumW = bin.SumW()
			row.SumW2 = bin.SumW2()
			rows = append(rows, row)
		}
	case aggregate.KindProfile:
		prof := agg.Profile()
		centers := binCenters(prof.Axis())

		for i := range prof.Len() + 2 {
			bin := prof.Cell(i)
			if bin.Entries == 0 {
				continue
			}

			row := base
			row.Coords = []int32{int32(i)}
			row.Center = []float64{centers[i]}
			row.Entries = uint64(bin.Entries)
			row.SumW = bin.SumW
			row.SumW2 = bin.SumW2
			row.Mean = bin.Mean()
			rows = append(rows, row)
		}
	case aggregate.KindSparse:
		sparse := agg.Sparse()
		axes := sparse.Axes()

		allCenters := make([][]float64, len(axes))
		for d, axis := range axes {
			allCenters[d] = binCenters(axis)
		}

		sparse.Each(func(coords []int, bin aggregate.SparseBin) {
			row := base
			row.Coords = make([]int32, len(coords))
			row.Center = make([]float64, len(coords))

			for d, c := range coords {
				row.Coords[d] = int32(c)
				row.Center[d] = allCenters[d][c]
			}

			row.Entries = uint64(max(bin.Entries, 0))
			row.SumW = bin.SumW
			row.SumW2 = bin.SumW2
			rows = append(rows, row)
		})
	case aggregate.KindUnknown:
	default:
	}

	return rows
}

// binCenters returns the center of every bin of axis indexed like Coords.
// The outflow bins take the axis bounds.
func binCenters(axis aggregate.Axis) []float64 {
	edges := axis.Edges()
	out := make([]float64, axis.Bins+2)
	out[0] = axis.Min
	out[axis.Bins+1] = axis.Max

	for i := 1; i <= axis.Bins; i++ {
		out[i] = (edges[i-1] + edges[i]) / 2
	}

	return out
}
