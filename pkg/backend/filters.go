package backend

import (
	"sort"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/types"
)

// snapshotSorter is a custom sorter for the snapshots.
type snapshotSorter struct {
	snaps []*histcache.Snapshot
	less  func(i, j *histcache.Snapshot) bool
}

func (s *snapshotSorter) Len() int           { return len(s.snaps) }
func (s *snapshotSorter) Swap(i, j int)      { s.snaps[i], s.snaps[j] = s.snaps[j], s.snaps[i] }
func (s *snapshotSorter) Less(i, j int) bool { return s.less(s.snaps[i], s.snaps[j]) }

// IFilter is a backend agnostic interface for a filter that can be applied to a list of snapshots.
type IFilter interface {
	ApplyFilter(backendType string, snaps []*histcache.Snapshot) ([]*histcache.Snapshot, error)
}

// sortByFilter is a filter that sorts the snapshots by a given field.
type sortByFilter struct {
	field string
}

// SortOrderFilter is a filter that sets the sort direction.
type SortOrderFilter struct {
	ascending bool
}

// filterFunc is a filter that keeps the snapshots accepted by fn.
type filterFunc struct {
	fn func(snap *histcache.Snapshot) bool
}

// WithSortBy returns a filter that sorts the snapshots by a given field.
func WithSortBy(field string) IFilter { //nolint:ireturn
	return sortByFilter{field: field}
}

// WithSortOrderAsc returns a filter that determines whether to sort ascending or not.
func WithSortOrderAsc(ascending bool) SortOrderFilter {
	return SortOrderFilter{ascending: ascending}
}

// WithFilterFunc returns a filter that keeps the snapshots accepted by fn.
func WithFilterFunc(fn func(snap *histcache.Snapshot) bool) IFilter { //nolint:ireturn
	return filterFunc{fn: fn}
}

// WithNamePrefix returns a filter that keeps the snapshots whose collection
// name starts with prefix.
func WithNamePrefix(prefix string) IFilter { //nolint:ireturn
	return filterFunc{fn: func(snap *histcache.Snapshot) bool {
		return strings.HasPrefix(snap.Name, prefix)
	}}
}

// ApplyFilter applies the sort by filter to the given list of snapshots.
func (f sortByFilter) ApplyFilter(_ string, snaps []*histcache.Snapshot) ([]*histcache.Snapshot, error) {
	var sorter *snapshotSorter

	switch f.field {
	case types.SortByID.String():
		sorter = &snapshotSorter{
			snaps: snaps,
			less: func(i, j *histcache.Snapshot) bool {
				return i.ID < j.ID
			},
		}
	case types.SortByName.String():
		sorter = &snapshotSorter{
			snaps: snaps,
			less: func(i, j *histcache.Snapshot) bool {
				if i.Name == j.Name {
					return i.ID < j.ID
				}

				return i.Name < j.Name
			},
		}
	case types.SortByCreatedAt.String():
		sorter = &snapshotSorter{
			snaps: snaps,
			less: func(i, j *histcache.Snapshot) bool {
				return i.CreatedAt.Before(j.CreatedAt)
			},
		}
	case types.SortByObjects.String():
		sorter = &snapshotSorter{
			snaps: snaps,
			less: func(i, j *histcache.Snapshot) bool {
				return len(i.Objects) < len(j.Objects)
			},
		}
	case types.SortByLineage.String():
		sorter = &snapshotSorter{
			snaps: snaps,
			less: func(i, j *histcache.Snapshot) bool {
				return len(i.Lineage) < len(j.Lineage)
			},
		}
	default:
		return nil, ewrap.Newf("invalid sort field: %s", f.field)
	}

	sort.Stable(sorter)

	return snaps, nil
}

// ApplyFilter applies the sort order filter to the given list of snapshots.
func (f SortOrderFilter) ApplyFilter(_ string, snaps []*histcache.Snapshot) ([]*histcache.Snapshot, error) {
	if !f.ascending {
		for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
			snaps[i], snaps[j] = snaps[j], snaps[i]
		}
	}

	return snaps, nil
}

// ApplyFilter applies the filter function to the given list of snapshots.
func (f filterFunc) ApplyFilter(_ string, snaps []*histcache.Snapshot) ([]*histcache.Snapshot, error) {
	filtered := make([]*histcache.Snapshot, 0, len(snaps))

	for _, snap := range snaps {
		if f.fn(snap) {
			filtered = append(filtered, snap)
		}
	}

	return filtered, nil
}

func applyFilters(backendType string, snaps []*histcache.Snapshot, filters ...IFilter) ([]*histcache.Snapshot, error) {
	var err error

	for _, filter := range filters {
		snaps, err = filter.ApplyFilter(backendType, snaps)
		if err != nil {
			return nil, err
		}
	}

	return snaps, nil
}
