package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/sentinel"
	"github.com/hyp3rd/histcache/pkg/backend"
	"github.com/hyp3rd/histcache/pkg/shard"
	"github.com/hyp3rd/histcache/pkg/transport"
	"github.com/hyp3rd/histcache/types"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		id     string
		export bool
		prune  bool
		out    string
	)

	cmd := &cobra.Command{
		Use:   "merge [snapshot ids...]",
		Short: "Merge stored snapshots into one",
		Long: `Load snapshots from the configured backend, merge them and store the
result. With no id every stored snapshot is loaded, skipping those already
folded into another stored snapshot (the shards of a stored run merge, for
instance). A snapshot whose lineage overlaps another one is refused, so the
same shard is never counted twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := backend.Open(a.cfg.Backend)
			if err != nil {
				return err
			}

			defer closeQuietly(a.logger, "backend", store.Close)

			cat, err := a.cfg.LoadCatalog()
			if err != nil {
				return err
			}

			collections, err := backend.LoadAll(ctx, store, args, histcache.WithCatalog(cat))
			if err != nil {
				return err
			}

			if len(collections) == 0 {
				return ewrap.Wrap(sentinel.ErrSnapshotNotFound, "nothing to merge")
			}

			mergedID := firstNonEmpty(id, uuid.NewString()+"-merged")

			merged, err := shard.Merge(mergedID, a.logger, collections...)
			if err != nil {
				return err
			}

			err = a.finish(ctx, cmd.OutOrStdout(), merged, finishOptions{run: mergedID, store: store, out: out, export: export})
			if err != nil {
				return err
			}

			if prune {
				inputs := make([]string, 0, len(collections))
				for _, c := range collections {
					inputs = append(inputs, c.ID())
				}

				return store.Remove(ctx, inputs...)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Id of the merged snapshot (default: random)")
	cmd.Flags().BoolVar(&export, "export", false, "Export the merged bins to ClickHouse")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove the input snapshots once the merged one is stored")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the merged snapshot to this file")

	return cmd
}

func newCollectCmd(a *app) *cobra.Command {
	var (
		id      string
		expect  uint64
		timeout time.Duration
		store   bool
		export  bool
		out     string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Merge shard snapshots received over NATS",
		Long: `Subscribe to the configured NATS subject and merge every shard snapshot
received into one collection. Stops after --expect snapshots, at --timeout or
on interrupt, whichever comes first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.cfg.LoadCatalog()
			if err != nil {
				return err
			}

			dst := histcache.New(
				histcache.WithID(firstNonEmpty(id, uuid.NewString()+"-collected")),
				histcache.WithCatalog(cat),
				histcache.WithLogger(a.logger),
			)

			merged, err := a.collect(cmd.Context(), dst, expect, timeout)
			if err != nil {
				return err
			}

			opts := finishOptions{run: dst.ID(), out: out, export: export}

			if store {
				backendStore, err := backend.Open(a.cfg.Backend)
				if err != nil {
					return err
				}

				defer closeQuietly(a.logger, "backend", backendStore.Close)

				opts.store = backendStore
			}

			// finish outlives the wait deadline
			return a.finish(context.WithoutCancel(cmd.Context()), cmd.OutOrStdout(), merged, opts)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Id of the collected snapshot (default: random)")
	cmd.Flags().Uint64Var(&expect, "expect", 0, "Stop after this many merged snapshots (0: until interrupted)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop after this long (0: no limit)")
	cmd.Flags().BoolVar(&store, "store", false, "Store the collected snapshot in the configured backend")
	cmd.Flags().BoolVar(&export, "export", false, "Export the collected bins to ClickHouse")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the collected snapshot to this file")

	return cmd
}

func (a *app) collect(ctx context.Context, dst *histcache.Collection, expect uint64, timeout time.Duration) (*histcache.Collection, error) {
	if !a.cfg.NATS.Enabled() {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "nats.url")
	}

	nc, err := transport.Connect(a.cfg.NATS.URL, "histcache-collect")
	if err != nil {
		return nil, err
	}

	defer nc.Close()

	collector, err := transport.NewCollector(dst,
		transport.WithDefaultFormat(a.cfg.Backend.Serializer),
		transport.WithQueueGroup(a.cfg.NATS.Queue),
		transport.WithCollectorLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	sub, err := collector.Subscribe(nc, a.cfg.NATS.Subject)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := waitContext(ctx, timeout)
	defer cancel()

	if expect > 0 {
		err = collector.Wait(waitCtx, expect)
	} else {
		<-waitCtx.Done()
	}

	// Drain only starts draining: Stop is what keeps callbacks off dst
	unsubErr := sub.Drain()
	if unsubErr != nil {
		a.logger.Warn("drain subscription", zap.Error(unsubErr))
	}

	collector.Stop()

	stats := collector.Stats()
	a.logger.Info("collection stopped",
		zap.Uint64("received", stats.Received),
		zap.Uint64("merged", stats.Merged),
		zap.Uint64("duplicates", stats.Duplicates),
		zap.Uint64("failed", stats.Failed),
		zap.Uint64("dropped", stats.Dropped),
	)

	if err != nil && !errors.Is(err, sentinel.ErrTimeoutOrCanceled) {
		return nil, err
	}

	return dst, nil
}

func newSummaryCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "summary [snapshot id]",
		Short: "Print the objects of a snapshot, or list the stored snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if file != "" {
				snap, err := readSnapshotFile(file, a.cfg.Backend.Serializer)
				if err != nil {
					return err
				}

				return printSnapshot(out, snap)
			}

			store, err := backend.Open(a.cfg.Backend)
			if err != nil {
				return err
			}

			defer closeQuietly(a.logger, "backend", store.Close)

			if len(args) == 0 {
				snaps, err := store.List(ctx, backend.WithSortBy(types.SortByCreatedAt.String()))
				if err != nil {
					return err
				}

				return printSnapshots(out, snaps)
			}

			snap, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			return printSnapshot(out, snap)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the snapshot from this file instead of the backend")

	return cmd
}

func printSnapshot(out io.Writer, snap *histcache.Snapshot) error {
	c, err := histcache.FromSnapshot(snap)
	if err != nil {
		return err
	}

	return printCollection(out, c)
}

func newServeCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "serve [snapshot ids...]",
		Short: "Serve stored snapshots over the management HTTP server",
		Long: `Load and merge the given snapshots (all of them when no id is given) and
expose the result on /health, /stats, /catalog, /objects and /objects/size
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := a.cfg.LoadCatalog()
			if err != nil {
				return err
			}

			var collections []*histcache.Collection

			if file != "" {
				snap, err := readSnapshotFile(file, a.cfg.Backend.Serializer)
				if err != nil {
					return err
				}

				c, err := histcache.FromSnapshot(snap, histcache.WithCatalog(cat))
				if err != nil {
					return err
				}

				collections = append(collections, c)
			} else {
				store, err := backend.Open(a.cfg.Backend)
				if err != nil {
					return err
				}

				collections, err = backend.LoadAll(ctx, store, args, histcache.WithCatalog(cat))
				closeQuietly(a.logger, "backend", store.Close)

				if err != nil {
					return err
				}
			}

			var served *histcache.Collection

			switch len(collections) {
			case 0:
				served = histcache.New(histcache.WithCatalog(cat), histcache.WithLogger(a.logger))
			case 1:
				served = collections[0]
			default:
				served, err = shard.Merge(uuid.NewString()+"-served", a.logger, collections...)
				if err != nil {
					return err
				}
			}

			return a.serveCollection(ctx, served)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Serve the snapshot in this file instead of the backend")

	return cmd
}

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the object catalog as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.cfg.LoadCatalog()
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)

			err = enc.Encode(cat.Entries())
			if err != nil {
				return ewrap.Wrap(err, "encode catalog")
			}

			return enc.Close()
		},
	}
}
