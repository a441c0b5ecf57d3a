package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/biomarker-advisor/internal/config"
	"github.com/biomarker-advisor/internal/history"
	"github.com/biomarker-advisor/internal/setup"
)

const exportTimeLayout = "20060102-150405"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mcp-server",
		Short:        "Standalone biomarker advisor MCP server",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
	}

	cmd.AddCommand(setup.NewCommand(), newExportCmd(), newImportCmd())
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the evaluation history as JSON",
		Long: "Write the evaluation history as JSON. Without a file the export goes to\n" +
			"a timestamped file in the exports directory; \"-\" writes to stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadLiteConfig()
			path := defaultExportPath(cfg, time.Now())
			if len(args) > 0 {
				path = args[0]
			}

			return withHistory(cmd.Context(), cfg, func(ctx context.Context, store history.Store) error {
				if path == "-" {
					return store.ExportJSON(ctx, cmd.OutOrStdout())
				}
				if err := exportToFile(ctx, store, path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported evaluations to %s\n", path)
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load evaluations from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), config.LoadLiteConfig(), func(ctx context.Context, store history.Store) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				imported, skipped, err := store.ImportJSON(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d evaluations, skipped %d\n", imported, skipped)
				return nil
			})
		},
	}
}

func defaultExportPath(cfg *config.LiteConfig, now time.Time) string {
	return filepath.Join(cfg.ExportDir(), "evaluations-"+now.UTC().Format(exportTimeLayout)+".json")
}

// exportToFile returns the close error when the export itself succeeded.
func exportToFile(ctx context.Context, store history.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.ExportJSON(ctx, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func withHistory(ctx context.Context, cfg *config.LiteConfig, fn func(context.Context, history.Store) error) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}
	store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}
