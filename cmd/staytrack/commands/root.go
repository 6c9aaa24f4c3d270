package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"staytrack/internal/cache"
	"staytrack/internal/config"
	"staytrack/internal/logging"
	"staytrack/internal/metrics"
	"staytrack/internal/query"
	"staytrack/internal/service"
	"staytrack/internal/storage"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	store storage.Store
	snap  cache.Cache
	svc   *service.Service
)

var rootCmd = &cobra.Command{
	Use:   "staytrack",
	Short: "StayTrack reconstructs and classifies foreigners' stays from immigration logs",
	Long: `StayTrack imports arrival/departure logs and reference registries, merges them
into per-person stays with rolling 365-day statistics, and answers queries over
the CLI, a JSON API, or as an MCP server on stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		ctx := cmd.Context()
		if store, err = storage.Open(ctx, cfg.Store); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if snap, err = cache.New(ctx, cfg.RedisURL); err != nil {
			return fmt.Errorf("open cache: %w", err)
		}

		svc = service.New(store, snap, metrics.New(), service.Options{
			CacheTTL: cfg.CacheTTL,
			Query:    query.Options{PageSize: cfg.PageSize, MaxBatch: cfg.MaxBatch},
			Today:    cfg.Today,
		})

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("driver", cfg.Store.Driver).
			Msg("StayTrack starting")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if snap != nil {
			if err := snap.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close cache")
			}
		}
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close store")
			}
		}
	},
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
