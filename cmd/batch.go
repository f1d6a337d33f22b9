package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchImportJobID string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Cluster every course with progress data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		batch, err := e.Orch.ClusterAllCourses(ctx, batchImportJobID)
		if err != nil {
			return eris.Wrap(err, "batch cluster")
		}

		zap.L().Info("batch complete",
			zap.Int("courses", batch.TotalCourses),
			zap.Int("successful", batch.SuccessfulCourses),
			zap.Int("failed", batch.FailedCourses),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchImportJobID, "import-job", "", "import job ID to tag results with")
	rootCmd.AddCommand(batchCmd)
}
