package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"CatalogSync/internal/app"
	"CatalogSync/internal/config"
	"CatalogSync/internal/logging"
)

var (
	configPath  string
	incremental bool
)

var rootCmd = &cobra.Command{
	Use:          "catalogsync",
	Short:        "Sync the upstream media feed into the catalog and refresh view counts",
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the full feed into staging",
	RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
		return printJSON(out, a.Ingest(ctx))
	}),
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Apply staging to the catalog",
	RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
		return printJSON(out, a.Reconcile(ctx, incremental))
	}),
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Refresh view counts of the least viewed catalog items",
	RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
		return printJSON(out, a.Enrich(ctx))
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest then run a full reconciliation",
	RunE: withApp(func(ctx context.Context, a *app.Application, out io.Writer) error {
		ingest, cycle, reconciled := a.Sync(ctx)
		return printJSON(out, map[string]any{
			"ingest":     ingest,
			"reconciled": reconciled,
			"cycle":      cycle,
		})
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run sync and enrichment on their intervals until interrupted",
	RunE: withApp(func(ctx context.Context, a *app.Application, _ io.Writer) error {
		return a.Run(ctx)
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults to $CATALOGSYNC_CONFIG)")
	reconcileCmd.Flags().BoolVar(&incremental, "incremental", false, "update changed items only; never publish or delete")

	rootCmd.AddCommand(ingestCmd, reconcileCmd, enrichCmd, syncCmd, runCmd)
}

// withApp loads config, builds the application and runs fn under a
// signal-aware context.
func withApp(fn func(ctx context.Context, a *app.Application, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := application.Close(); err != nil {
				logger.Error("shutdown", "error", err)
			}
		}()

		return fn(ctx, application, cmd.OutOrStdout())
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
