package main

import (
	"fmt"

	"github.com/DRSN-tech/visual-search/internal/app"
	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/spf13/cobra"
)

// configLoader подменяется в тестах.
type configLoader func(log logger.Logger) (*config.Config, error)

func newRootCmd(log logger.Logger) *cobra.Command {
	return newRootCmdWithLoader(log, config.Load)
}

func newRootCmdWithLoader(log logger.Logger, load configLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "visual-search",
		Short:         "Visual product similarity search service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(log, load),
		newMigrateCmd(log, load),
		newReindexCmd(log, load),
		newImportCmd(log, load),
	)

	return root
}

func newServeCmd(log logger.Logger, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(log)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			return application.Run()
		},
	}
}

func newMigrateCmd(log logger.Logger, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := load(log)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			return app.Migrate(cfg, log)
		},
	}
}

func newReindexCmd(log logger.Logger, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from catalog embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(log)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer closeApp(application, log)

			indexed, total, err := application.Reindex(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d vectors, index size %d\n", indexed, total)
			return nil
		},
	}
}

func newImportCmd(log logger.Logger, load configLoader) *cobra.Command {
	var dir, category string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk ingest a directory of images as products of one category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(log)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer closeApp(application, log)

			res, err := application.Import(cmd.Context(), dir, category)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d products, failed %d\n", len(res.IDs), res.Failed)
			for _, itemErr := range res.Errors {
				fmt.Fprintf(out, "  item %d: %v\n", itemErr.Index, itemErr.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory with product images")
	cmd.Flags().StringVar(&category, "category", "", "category assigned to every imported product")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func closeApp(application *app.App, log logger.Logger) {
	ctx, cancel := app.ShutdownContext()
	defer cancel()
	if err := application.Close(ctx); err != nil {
		log.Errorf(err, "close app")
	}
}
