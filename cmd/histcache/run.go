package main

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/pkg/analysis"
	"github.com/hyp3rd/histcache/pkg/backend"
	"github.com/hyp3rd/histcache/pkg/shard"
	"github.com/hyp3rd/histcache/pkg/transport"
)

type runFlags struct {
	runID     string
	shards    int
	store     bool
	publish   bool
	export    bool
	serve     bool
	telemetry bool
	out       string
	yoda      string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [event files...]",
		Short: "Process event files and merge the shard collections",
		Long: `Process JSON-lines event files ("-" reads stdin) over the configured number
of shards. Every shard fills its own collection; the collections are merged at
the end and the merged collection is summarized on stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), f, args)
		},
	}

	cmd.Flags().StringVar(&f.runID, "run-id", "", "Prefix of the shard collection ids (default: run.id or a random id)")
	cmd.Flags().IntVarP(&f.shards, "shards", "n", 0, "Number of shards (default: run.shards)")
	cmd.Flags().BoolVar(&f.store, "store", false, "Store shard and merged snapshots in the configured backend")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Publish every shard snapshot over NATS")
	cmd.Flags().BoolVar(&f.export, "export", false, "Export the merged bins to ClickHouse")
	cmd.Flags().BoolVar(&f.serve, "serve", false, "Serve the merged collection over the management HTTP server until interrupted")
	cmd.Flags().BoolVar(&f.telemetry, "telemetry", false, "Record OpenTelemetry metrics and spans for collection calls")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the merged snapshot to this file")
	cmd.Flags().StringVar(&f.yoda, "yoda", "", "Write counters and distributions to this YODA file")

	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, f *runFlags, paths []string) error {
	cat, err := a.cfg.LoadCatalog()
	if err != nil {
		return err
	}

	runID := firstNonEmpty(f.runID, a.cfg.Run.ID, uuid.NewString())

	shards := a.cfg.Run.Shards
	if f.shards > 0 {
		shards = f.shards
	}

	opts := []shard.Option{
		shard.WithRunID(runID),
		shard.WithShards(shards),
		shard.WithBuffer(a.cfg.Run.Buffer),
		shard.WithCatalog(cat),
		shard.WithLogger(a.logger),
		shard.WithTaskOptions(
			analysis.WithEventCuts(a.cfg.EventCuts),
			analysis.WithTrackCuts(a.cfg.TrackCuts),
		),
	}

	mws := a.middlewares(f.telemetry)
	if len(mws) > 0 {
		opts = append(opts, shard.WithMiddleware(mws...))
	}

	var (
		hooks []shard.DoneHook
		store backend.IBackend
	)

	if f.store {
		store, err = backend.Open(a.cfg.Backend)
		if err != nil {
			return err
		}

		defer closeQuietly(a.logger, "backend", store.Close)

		hooks = append(hooks, storeHook(store))
	}

	if f.publish {
		pub, err := a.publisher()
		if err != nil {
			return err
		}

		defer closeQuietly(a.logger, "nats publisher", pub.Close)

		hooks = append(hooks, pub.PublishCollection)
	}

	if len(hooks) > 0 {
		opts = append(opts, shard.WithDoneHook(chainHooks(hooks...)))
	}

	src := newFileSource(paths, a.logger)
	defer src.Close()

	res, err := shard.NewRunner(opts...).Run(ctx, src)
	if err != nil {
		return err
	}

	for i, st := range res.Stats {
		a.logger.Info("shard done",
			zap.Int("shard", i),
			zap.Uint64("events", st.Events),
			zap.Uint64("accepted", st.Accepted),
			zap.Uint64("rejected", st.Rejected),
			zap.Uint64("skipped_format", st.SkippedFormat),
			zap.Uint64("reco_tracks", st.RecoTracks),
			zap.Uint64("generated_muons", st.GeneratedMuons),
		)
	}

	a.logger.Info("run complete",
		zap.String("run", runID),
		zap.Int("shards", shards),
		zap.Int("skipped_lines", src.Skipped()),
		zap.Int("objects", res.Merged.Count()),
	)

	return a.finish(ctx, out, res.Merged, finishOptions{
		run:    runID,
		store:  store,
		out:    f.out,
		yoda:   f.yoda,
		export: f.export,
		serve:  f.serve,
	})
}

// finishOptions says what to do with a merged collection.
type finishOptions struct {
	run    string
	store  backend.IBackend
	out    string
	yoda   string
	export bool
	serve  bool
}

// finish persists, exports, prints and optionally serves a merged collection.
func (a *app) finish(ctx context.Context, out io.Writer, merged *histcache.Collection, opts finishOptions) error {
	snap, err := merged.Snapshot()
	if err != nil {
		return err
	}

	if opts.store != nil {
		err = opts.store.Put(ctx, snap)
		if err != nil {
			return err
		}

		a.logger.Info("merged snapshot stored", zap.String("snapshot", snap.ID), zap.String("backend", a.cfg.Backend.Type))
	}

	if opts.out != "" {
		err = writeSnapshotFile(opts.out, a.cfg.Backend.Serializer, snap)
		if err != nil {
			return err
		}
	}

	if opts.yoda != "" {
		n, err := writeYODA(opts.yoda, merged)
		if err != nil {
			return err
		}

		a.logger.Info("yoda written", zap.String("file", opts.yoda), zap.Int("objects", n))
	}

	if opts.export {
		err = a.exportSnapshot(ctx, opts.run, snap)
		if err != nil {
			return err
		}
	}

	err = printCollection(out, merged)
	if err != nil {
		return err
	}

	if opts.serve {
		return a.serveCollection(ctx, merged)
	}

	return nil
}

// publisher connects to the configured NATS server.
func (a *app) publisher() (*transport.Publisher, error) {
	nc, err := transport.Connect(a.cfg.NATS.URL, "histcache-run")
	if err != nil {
		return nil, err
	}

	pub, err := transport.NewPublisher(nc,
		transport.WithSubject(a.cfg.NATS.Subject),
		transport.WithFormat(a.cfg.Backend.Serializer),
		transport.WithPublisherLogger(a.logger),
	)
	if err != nil {
		nc.Close()

		return nil, err
	}

	return pub, nil
}

func storeHook(store backend.IBackend) shard.DoneHook {
	return func(ctx context.Context, c *histcache.Collection) error {
		snap, err := c.Snapshot()
		if err != nil {
			return err
		}

		return store.Put(ctx, snap)
	}
}

// chainHooks runs hooks in order and stops at the first error.
func chainHooks(hooks ...shard.DoneHook) shard.DoneHook {
	return func(ctx context.Context, c *histcache.Collection) error {
		for _, hook := range hooks {
			err := hook(ctx, c)
			if err != nil {
				return err
			}
		}

		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func closeQuietly(logger *zap.Logger, what string, closeFn func() error) {
	err := closeFn()
	if err != nil {
		logger.Warn("close failed", zap.String("resource", what), zap.Error(err))
	}
}
