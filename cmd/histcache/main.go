// Command histcache runs the single-muon analysis over JSON-lines event files
// and manages the resulting histogram snapshots.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache/internal/config"
)

// app carries what every subcommand needs once the root pre-run has loaded
// the configuration.
type app struct {
	cfgPath string
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "histcache",
		Short: "Lazily built, mergeable muon histograms",
		Long: `histcache fills the single-muon histograms of a set of events into a
collection of named objects, one per (trigger class, object name).

Available subcommands:
  run      - process event files over N shards and merge the result
  merge    - merge stored shard snapshots into one
  collect  - merge shard snapshots received over NATS
  summary  - print the objects of a stored snapshot
  serve    - expose a stored snapshot through the management HTTP server
  catalog  - print the object catalog`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML run configuration (defaults apply when empty)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newMergeCmd(a),
		newCollectCmd(a),
		newSummaryCmd(a),
		newServeCmd(a),
		newCatalogCmd(a),
	)

	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	if a.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	return nil
}
