package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edusight/cluster-cli/internal/importer"
)

var loadCSVPath string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load student progress aggregates from CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		imported, err := importer.ImportProgressCSV(ctx, st, loadCSVPath)
		if err != nil {
			return eris.Wrap(err, "load csv")
		}

		zap.L().Info("load complete",
			zap.Int("rows", imported),
			zap.String("csv", loadCSVPath),
		)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadCSVPath, "csv", "", "path to CSV file (required)")
	_ = loadCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(loadCmd)
}
