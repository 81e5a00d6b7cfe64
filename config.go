package histcache

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hyp3rd/histcache/pkg/catalog"
)

// Option is a function type that can be used to configure the `Collection` struct.
type Option func(*Collection)

// ApplyOptions applies the given options to the given collection.
func ApplyOptions(c *Collection, options ...Option) {
	for _, option := range options {
		option(c)
	}
}

// WithCatalog is an option that sets the dispatch table of the collection.
// A nil catalog keeps the default one.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *Collection) {
		if cat != nil {
			c.catalog = cat
		}
	}
}

// WithLogger is an option that sets the logger used to report rejected
// lookups and the estimated size after every creation.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithID is an option that sets the collection id. The id is the lineage
// entry used to refuse merging the same collection twice, so it must be
// unique across the shards of a run. Blank ids are ignored.
func WithID(id string) Option {
	return func(c *Collection) {
		if strings.TrimSpace(id) != "" {
			c.id = id
		}
	}
}

// WithName is an option that sets the collection name.
func WithName(name string) Option {
	return func(c *Collection) {
		if name != "" {
			c.name = name
		}
	}
}
