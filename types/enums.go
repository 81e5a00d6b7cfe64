// Package types holds small enumerations shared by the snapshot backends and the CLI.
package types

// SortingField is a type that represents the field to sort stored snapshots by.
type SortingField string

// Constants for the different fields that snapshots can be sorted by.
const (
	SortByID        SortingField = "ID"        // Sort by the collection id of the snapshot
	SortByName      SortingField = "Name"      // Sort by the collection name
	SortByCreatedAt SortingField = "CreatedAt" // Sort by the time the snapshot was taken
	SortByObjects   SortingField = "Objects"   // Sort by the number of aggregates held
	SortByLineage   SortingField = "Lineage"   // Sort by the number of collections folded in
)

// String returns the string representation of the SortingField.
func (f SortingField) String() string {
	return string(f)
}
