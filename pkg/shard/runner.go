// Package shard spreads events over independent shards, each filling a
// private collection, and merges the shard collections once the input is
// exhausted.
package shard

import (
	"context"
	"errors"
	"io"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/analysis"
	"github.com/hyp3rd/histcache/pkg/catalog"
)

// EventSource yields events until io.EOF.
type EventSource interface {
	Next() (*analysis.Event, error)
}

// DoneHook is called with the collection of a shard once it has processed
// its last event, before the merge.
type DoneHook func(ctx context.Context, shard *histcache.Collection) error

// Option configures a Runner.
type Option func(*Runner)

// WithShards sets the number of shards. Values below one are ignored.
func WithShards(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.shards = n
		}
	}
}

// WithBuffer sets the size of each shard's event channel.
func WithBuffer(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.buffer = n
		}
	}
}

// WithRunID sets the prefix of the shard collection ids.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// WithCatalog sets the catalog of every shard collection.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(r *Runner) { r.catalog = cat }
}

// WithLogger sets the logger of the runner, its collections and tasks.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTaskOptions sets options applied to every shard task. A task logger
// set here is replaced by the runner logger tagged with the shard index.
func WithTaskOptions(opts ...analysis.TaskOption) Option {
	return func(r *Runner) { r.taskOpts = append(r.taskOpts, opts...) }
}

// WithMiddleware decorates the service every shard task fills.
func WithMiddleware(mw ...histcache.Middleware) Option {
	return func(r *Runner) { r.middleware = append(r.middleware, mw...) }
}

// WithDoneHook sets the hook called when a shard finishes.
func WithDoneHook(hook DoneHook) Option {
	return func(r *Runner) { r.onDone = hook }
}

// Runner routes events to shards by the xxhash of their id.
type Runner struct {
	shards     int
	buffer     int
	runID      string
	catalog    *catalog.Catalog
	logger     *zap.Logger
	taskOpts   []analysis.TaskOption
	middleware []histcache.Middleware
	onDone     DoneHook
}

// Result is the outcome of a run.
type Result struct {
	// Merged holds the sum of every shard.
	Merged *histcache.Collection
	// Shards holds the shard collections, indexed by shard number.
	Shards []*histcache.Collection
	// Stats holds the task counters, indexed by shard number.
	Stats []analysis.TaskStats
}

// NewRunner returns a runner with a single shard by default.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		shards: constants.DefaultShards,
		buffer: constants.DefaultEventBuffer,
		runID:  uuid.NewString(),
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Shards returns the number of shards.
func (r *Runner) Shards() int { return r.shards }

// Route returns the shard an event id is assigned to.
func (r *Runner) Route(eventID string) int {
	return int(xxhash.Sum64String(eventID) % uint64(r.shards))
}

// ShardID returns the collection id of shard i.
func (r *Runner) ShardID(i int) string {
	return r.runID + "-shard-" + strconv.Itoa(i)
}

// Run consumes src until io.EOF and returns the merged result. The first
// error of the source, a shard hook or the merge cancels the run.
func (r *Runner) Run(ctx context.Context, src EventSource) (*Result, error) {
	if src == nil {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "event source")
	}

	res := &Result{
		Shards: make([]*histcache.Collection, r.shards),
		Stats:  make([]analysis.TaskStats, r.shards),
	}

	queues := make([]chan *analysis.Event, r.shards)
	tasks := make([]*analysis.Task, r.shards)

	for i := range r.shards {
		res.Shards[i] = histcache.New(
			histcache.WithID(r.ShardID(i)),
			histcache.WithCatalog(r.catalog),
			histcache.WithLogger(r.logger.With(zap.Int("shard", i))),
		)

		svc := histcache.ApplyMiddleware(res.Shards[i].AsService(), r.middleware...)

		// the shard logger goes last so task logs always carry the shard
		opts := append(slices.Clone(r.taskOpts), analysis.WithTaskLogger(r.logger.With(zap.Int("shard", i))))
		tasks[i] = analysis.NewTask(svc, opts...)
		queues[i] = make(chan *analysis.Event, r.buffer)
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()

		return r.dispatch(gctx, src, queues)
	})

	for i := range r.shards {
		group.Go(func() error {
			for ev := range queues[i] {
				if gctx.Err() != nil {
					continue // drain
				}

				tasks[i].Process(gctx, ev)
			}

			res.Stats[i] = tasks[i].Stats()

			if gctx.Err() != nil || r.onDone == nil {
				return nil
			}

			return r.onDone(gctx, res.Shards[i])
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	merged, err := Merge(r.runID+"-merged", r.logger, res.Shards...)
	if err != nil {
		return nil, err
	}

	res.Merged = merged

	r.logger.Info("run completed",
		zap.Int("shards", r.shards),
		zap.Int("objects", merged.Count()),
		zap.Int64("size_bytes", merged.EstimateSize()),
	)

	return res, nil
}

func (r *Runner) dispatch(ctx context.Context, src EventSource, queues []chan *analysis.Event) error {
	for {
		if ctx.Err() != nil {
			return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, ctx.Err().Error())
		}

		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return ewrap.Wrap(err, "read event")
		}

		select {
		case queues[r.Route(ev.ID)] <- ev:
		case <-ctx.Done():
			return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, ctx.Err().Error())
		}
	}
}

// Merge folds collections into a new collection with the given id. The
// catalog of the first collection is kept.
func Merge(id string, logger *zap.Logger, collections ...*histcache.Collection) (*histcache.Collection, error) {
	opts := []histcache.Option{histcache.WithID(id), histcache.WithLogger(logger)}
	if len(collections) > 0 && collections[0] != nil {
		opts = append(opts, histcache.WithCatalog(collections[0].Catalog()))
	}

	merged := histcache.New(opts...)

	for _, c := range collections {
		err := merged.Merge(c)
		if err != nil {
			return nil, ewrap.Wrapf(err, "merge into %s", id)
		}
	}

	return merged, nil
}
