// Package middleware provides service middlewares for a histcache collection.
// This package includes logging middleware that wraps the collection service to provide
// execution time logging and method call tracing for debugging and monitoring purposes.
package middleware

import (
	"context"
	"time"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/pkg/aggregate"
)

// Logger describes a logging interface allowing to implement different external, or custom logger.
// Uber's Zap satisfies it through zap.NewStdLog, and so does the standard library logger.
type Logger interface {
	Printf(format string, v ...any)
}

// LoggingMiddleware is a middleware that logs the time it takes to execute the next middleware.
// Must implement the histcache.Service interface.
type LoggingMiddleware struct {
	next   histcache.Service
	logger Logger
}

// NewLoggingMiddleware returns a new LoggingMiddleware.
func NewLoggingMiddleware(next histcache.Service, logger Logger) histcache.Service {
	return &LoggingMiddleware{next: next, logger: logger}
}

// GetOrCreate logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) GetOrCreate(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetOrCreate took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetOrCreate method called with identifier: %s name: %s", identifier, name)

	return mw.next.GetOrCreate(ctx, identifier, name)
}

// Get logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Get(ctx context.Context, identifier, name string) (*aggregate.Aggregate, bool) {
	defer func(begin time.Time) {
		mw.logger.Printf("method Get took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Get method called with identifier: %s name: %s", identifier, name)

	return mw.next.Get(ctx, identifier, name)
}

// Count takes to execute the next middleware.
func (mw LoggingMiddleware) Count(ctx context.Context) int {
	return mw.next.Count(ctx)
}

// EstimateSize returns the estimated size of the collection in bytes.
func (mw LoggingMiddleware) EstimateSize() int64 {
	return mw.next.EstimateSize()
}

// Merge logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Merge(ctx context.Context, other *histcache.Collection) error {
	defer func(begin time.Time) {
		mw.logger.Printf("method Merge took: %s", time.Since(begin))
	}(time.Now())

	if other != nil {
		mw.logger.Printf("Merge method invoked with collection: %s", other.ID())
	}

	return mw.next.Merge(ctx, other)
}

// Snapshot logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Snapshot(ctx context.Context) (*histcache.Snapshot, error) {
	defer func(begin time.Time) {
		mw.logger.Printf("method Snapshot took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("Snapshot method invoked")

	return mw.next.Snapshot(ctx)
}

// GetStats logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) GetStats() histcache.Stats {
	defer func(begin time.Time) {
		mw.logger.Printf("method GetStats took: %s", time.Since(begin))
	}(time.Now())

	mw.logger.Printf("GetStats method invoked")

	return mw.next.GetStats()
}
