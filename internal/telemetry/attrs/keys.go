// Package attrs defines telemetry attribute keys used for observability
// across the histcache system. These constants keep metric, trace and log
// attribute names consistent between the service middlewares.
package attrs

const (
	// AttrIdentifier is the attribute key carrying the collection identifier of a lookup.
	AttrIdentifier = "identifier"
	// AttrObjectName is the attribute key carrying the requested object name.
	AttrObjectName = "object.name"
	// AttrObjectKind is the attribute key carrying the aggregate kind returned by a lookup.
	AttrObjectKind = "object.kind"
	// AttrFound reports whether a lookup yielded an aggregate.
	AttrFound = "found"
	// AttrObjectsCount is the number of objects held by a collection or snapshot.
	AttrObjectsCount = "objects.count"
	// AttrSizeBytes is the estimated memory footprint of a collection in bytes.
	AttrSizeBytes = "size.bytes"
	// AttrLineageCount is the number of shards folded into a collection.
	AttrLineageCount = "lineage.count"
)
