package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runCourseID    int64
	runImportJobID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cluster one course into risk tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Orch.ClusterCourse(ctx, runCourseID, runImportJobID)
		if err != nil {
			return eris.Wrap(err, "cluster course")
		}

		zap.L().Info("clustering complete",
			zap.Int64("course_id", summary.CourseID),
			zap.String("algorithm", summary.AlgorithmUsed),
			zap.Int("clustered", summary.ClusteredStudents),
			zap.Int("skipped", summary.SkippedStudents),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	runCmd.Flags().Int64Var(&runCourseID, "course", 0, "course ID (required)")
	runCmd.Flags().StringVar(&runImportJobID, "import-job", "", "import job ID to tag results with")
	_ = runCmd.MarkFlagRequired("course")
	rootCmd.AddCommand(runCmd)
}
