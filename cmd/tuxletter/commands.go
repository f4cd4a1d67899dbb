package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"TuxLetter/internal/app"
	"TuxLetter/internal/config"
	"TuxLetter/internal/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tuxletter",
		Short:         "Daily Linux news digest",
		Long:          "tuxletter collects new items from lore.kernel.org, Phoronix, Linux.com and It's FOSS, synthesizes them with a language model and delivers the digest.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config (defaults to $TUXLETTER_CONFIG)")

	root.AddCommand(
		newRunCommand(opts),
		newScheduleCommand(opts),
		newScrapeCommand(opts),
		newStatsCommand(opts),
		newCleanCacheCommand(opts),
	)
	return root
}

// setup loads configuration and builds the application. The returned func
// releases the log file and the database handle.
func setup(opts *rootOptions) (*app.Application, *slog.Logger, func(), error) {
	cfg := config.Load()
	if opts.configPath != "" {
		cfg = config.LoadFrom(opts.configPath)
	}

	logger, closeLog, err := logging.Open(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
		_ = closeLog()
	}
	return application, logger, cleanup, nil
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the digest pipeline once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, cleanup, err := setup(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Run(cmd.Context()); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the digest pipeline on the configured cron expression",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, cleanup, err := setup(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Schedule(cmd.Context()); err != nil {
				logger.Error("scheduler stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newScrapeCommand(opts *rootOptions) *cobra.Command {
	var sources []string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape sources and print the new items without sending or caching them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, cleanup, err := setup(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			batch := application.Scrape(cmd.Context(), sources)
			renderBatch(cmd.OutOrStdout(), batch)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "sources to scrape (lore, phoronix, linuxcom, itsfoss); all when empty")
	return cmd
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show link cache statistics and enabled sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, cleanup, err := setup(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			renderStats(cmd.OutOrStdout(), application.CacheStats(), application.Sources())
			return nil
		},
	}
}

func newCleanCacheCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean-cache",
		Short: "Delete the link cache so every item is offered again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, cleanup, err := setup(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			before, after, err := application.CleanCache()
			if err != nil {
				return fmt.Errorf("clean cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d links from %s (file exists: %t)\n",
				before.TotalLinks-after.TotalLinks, before.Location, after.Exists)
			return nil
		},
	}
}
