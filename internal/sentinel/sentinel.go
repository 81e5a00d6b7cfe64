// Package sentinel provides standardized error definitions for the histcache system.
// This package centralizes the error values used across collections, aggregates,
// backends and transports so callers can match them with errors.Is.
//
// All errors are created using the ewrap package to provide enhanced error
// wrapping and context capabilities.
package sentinel

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrInvalidIdentifier is returned when an empty or whitespace-only identifier is used.
	ErrInvalidIdentifier = ewrap.New("invalid identifier")

	// ErrUnknownObject is returned when an object name is not part of the catalog.
	ErrUnknownObject = ewrap.New("unknown object")

	// ErrKeyNotFound is returned when a key is not found in the collection.
	ErrKeyNotFound = ewrap.New("key not found")

	// ErrKindMismatch is returned when an operation does not match the aggregate kind.
	ErrKindMismatch = ewrap.New("aggregate kind mismatch")

	// ErrShapeMismatch is returned when two aggregates with different binning are combined.
	ErrShapeMismatch = ewrap.New("aggregate shape mismatch")

	// ErrInvalidDimension is returned when a sparse fill vector has the wrong length.
	ErrInvalidDimension = ewrap.New("invalid dimension")

	// ErrInvalidAxis is returned when an axis has no bins or an empty range.
	ErrInvalidAxis = ewrap.New("invalid axis")

	// ErrInvalidCatalog is returned when a catalog entry cannot be used to build an aggregate.
	ErrInvalidCatalog = ewrap.New("invalid catalog entry")

	// ErrAlreadyMerged is returned when a collection is merged twice into the same destination.
	ErrAlreadyMerged = ewrap.New("collection already merged")

	// ErrNilCollection is returned when a nil collection is passed where one is required.
	ErrNilCollection = ewrap.New("nil collection")

	// ErrNilClient is returned when a nil client is passed to a backend or transport.
	ErrNilClient = ewrap.New("nil client")

	// ErrParamCannotBeEmpty is returned when a parameter cannot be empty.
	ErrParamCannotBeEmpty = ewrap.New("param cannot be empty")

	// ErrSerializerNotFound is returned when a serializer is not found.
	ErrSerializerNotFound = ewrap.New("serializer not found")

	// ErrBackendNotFound is returned when a backend is not found.
	ErrBackendNotFound = ewrap.New("backend not found")

	// ErrSnapshotNotFound is returned when a snapshot id is not present in a backend.
	ErrSnapshotNotFound = ewrap.New("snapshot not found")

	// ErrInvalidSnapshotID is returned when a snapshot id is empty or cannot be used as a storage key.
	ErrInvalidSnapshotID = ewrap.New("invalid snapshot id")

	// ErrUnknownEventFormat is returned when an event carries neither an AOD nor an ESD payload.
	ErrUnknownEventFormat = ewrap.New("AOD or ESD event not found")

	// ErrTimeoutOrCanceled is returned when a timeout or cancellation occurs.
	ErrTimeoutOrCanceled = ewrap.New("the operation timed out or was canceled")

	// ErrCollectorStopped is returned when a snapshot arrives after the collector was stopped.
	ErrCollectorStopped = ewrap.New("collector stopped")

	// ErrMgmtHTTPShutdownTimeout is returned when the management HTTP server fails to shutdown before context deadline.
	ErrMgmtHTTPShutdownTimeout = ewrap.New("management http shutdown timeout")
)
