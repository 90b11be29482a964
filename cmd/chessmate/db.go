package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chessmate/internal/cli"
	"chessmate/internal/logger"
	"chessmate/internal/storage"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the analysis archive",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "Database file path (default storage.path)")

	// archivePath resolves the flag against the configuration
	archivePath := func() (string, error) {
		if path != "" {
			return path, nil
		}
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return "", err
		}
		if cfg.Storage.Path == "" {
			return "", fmt.Errorf("database path required")
		}
		return cfg.Storage.Path, nil
	}

	cmd.AddCommand(newDBInitCommand(ctx, archivePath))
	cmd.AddCommand(newDBDeleteCommand(ctx, archivePath))
	cmd.AddCommand(newDBQueryCommand(ctx, archivePath))
	return cmd
}

func newDBInitCommand(ctx *commandContext, archivePath func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the archive schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := archivePath()
			if err != nil {
				return err
			}
			store, err := openStore(path, logger.Component(ctx.baseLogger(), "storage"))
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized at: %s\n", path)
			return nil
		},
	}
}

func newDBDeleteCommand(ctx *commandContext, archivePath func() (string, error)) *cobra.Command {
	var analysisID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the archive, or one analysis with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := archivePath()
			if err != nil {
				return err
			}
			store, err := storage.NewStore(path, false, logger.Component(ctx.baseLogger(), "storage"))
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			if analysisID != "" {
				defer store.Close()
				if err := store.DeleteAnalysis(analysisID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Analysis deleted: %s\n", analysisID)
				return nil
			}

			if err := store.DeleteDB(); err != nil {
				return fmt.Errorf("failed to delete database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database deleted: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&analysisID, "id", "", "Delete only this analysis")
	return cmd
}

func newDBQueryCommand(ctx *commandContext, archivePath func() (string, error)) *cobra.Command {
	var (
		username     string
		platformName string
		analysisID   string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List archived analyses, or the mistakes of one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := archivePath()
			if err != nil {
				return err
			}
			store, err := storage.NewStore(path, false, logger.Component(ctx.baseLogger(), "storage"))
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			printer := cli.NewPrinter(cmd.OutOrStdout())

			if analysisID != "" {
				mistakes, err := store.QueryMistakes(analysisID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printer.JSON(mistakes)
				}
				printer.ArchivedMistakes(mistakes)
				return nil
			}

			analyses, err := store.QueryAnalyses(username, platformName)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printer.JSON(analyses)
			}
			printer.Analyses(analyses)
			if len(analyses) > 0 {
				printer.Message("\nFound %d analysis(es)", len(analyses))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Username to filter (optional, * for all)")
	cmd.Flags().StringVarP(&platformName, "platform", "p", "", "Platform to filter (optional, * for all)")
	cmd.Flags().StringVar(&analysisID, "id", "", "Show the mistakes of one analysis")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	return cmd
}
