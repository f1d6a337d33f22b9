package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/edusight/cluster-cli/internal/model"
	"github.com/edusight/cluster-cli/internal/monitoring"
)

var (
	statusCourseID int64
	statusLookback time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current assignments and quality history for a course",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		assignments, err := e.Store.AssignmentsForCourse(ctx, statusCourseID)
		if err != nil {
			return eris.Wrap(err, "load assignments")
		}
		history, err := e.Monitor.History(ctx, statusCourseID, statusLookback)
		if err != nil {
			return eris.Wrap(err, "load quality history")
		}
		perf, err := e.Monitor.Summary(ctx, statusLookback)
		if err != nil {
			return eris.Wrap(err, "load performance summary")
		}

		out := struct {
			CourseID    int64                          `json:"course_id"`
			Assignments []model.ClusterAssignment      `json:"assignments"`
			History     []model.QualityRecord          `json:"quality_history"`
			Performance *monitoring.PerformanceSummary `json:"performance"`
		}{
			CourseID:    statusCourseID,
			Assignments: assignments,
			History:     history,
			Performance: perf,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statusCmd.Flags().Int64Var(&statusCourseID, "course", 0, "course ID (required)")
	statusCmd.Flags().DurationVar(&statusLookback, "lookback", 24*time.Hour, "history window")
	_ = statusCmd.MarkFlagRequired("course")
	rootCmd.AddCommand(statusCmd)
}
