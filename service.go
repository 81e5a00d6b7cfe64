package histcache

import (
	"context"

	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// Service is the service interface for the Collection.
// It enables middleware to be added to the service.
type Service interface {
	// GetOrCreate returns the aggregate under (identifier, name), creating it on first request
	GetOrCreate(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool)
	// Get returns the aggregate under (identifier, name) without creating it
	Get(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool)
	// Count returns the number of aggregates held
	Count(ctx context.Context) int
	// EstimateSize returns the estimated memory held by the aggregates in bytes
	EstimateSize() int64
	// Merge sums another collection into the service's collection
	Merge(ctx context.Context, other *Collection) error
	// Snapshot exports the collection
	Snapshot(ctx context.Context) (*Snapshot, error)
	// GetStats returns the counters of the collection
	GetStats() Stats
}

// AsService exposes a collection through the Service interface.
func (c *Collection) AsService() Service { //nolint:ireturn
	return collectionService{c: c}
}

type collectionService struct {
	c *Collection
}

func (s collectionService) GetOrCreate(_ context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	return s.c.GetOrCreate(identifier, name)
}

func (s collectionService) Get(_ context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	return s.c.Get(identifier, name)
}

func (s collectionService) Count(_ context.Context) int { return s.c.Count() }

func (s collectionService) EstimateSize() int64 { return s.c.EstimateSize() }

func (s collectionService) Merge(_ context.Context, other *Collection) error { return s.c.Merge(other) }

func (s collectionService) Snapshot(_ context.Context) (*Snapshot, error) { return s.c.Snapshot() }

func (s collectionService) GetStats() Stats { return s.c.Stats() }

// Middleware describes a service middleware.
type Middleware func(Service) Service

// ApplyMiddleware applies middlewares to a service.
func ApplyMiddleware(svc Service, mw ...Middleware) Service {
	// Apply each middleware in the chain
	for _, m := range mw {
		svc = m(svc)
	}
	// Return the decorated service
	return svc
}
