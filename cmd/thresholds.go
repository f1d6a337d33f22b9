package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/edusight/cluster-cli/internal/model"
)

var thresholdsSet model.Thresholds

// thresholdsFromConfig builds alert thresholds from the loaded config,
// falling back to defaults for unset values.
func thresholdsFromConfig() model.Thresholds {
	t := model.DefaultThresholds()
	if cfg.Monitoring.SilhouetteMin > 0 {
		t.SilhouetteMin = cfg.Monitoring.SilhouetteMin
	}
	if cfg.Monitoring.CombinedMin > 0 {
		t.CombinedMin = cfg.Monitoring.CombinedMin
	}
	if cfg.Monitoring.ProcessingTimeMax > 0 {
		t.ProcessingTimeMax = cfg.Monitoring.ProcessingTimeMax
	}
	if cfg.Monitoring.MemoryUsageMax > 0 {
		t.MemoryUsageMax = cfg.Monitoring.MemoryUsageMax
	}
	return t
}

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Inspect and validate alert thresholds",
}

var thresholdsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective alert thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(e.Monitor.Thresholds())
	},
}

var thresholdsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Validate a threshold combination",
	Long:  "Validates the given thresholds the same way the serve API does. Persistent changes go through config or the EDUSIGHT_MONITORING_* environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		t := e.Monitor.Thresholds()
		if cmd.Flags().Changed("silhouette-min") {
			t.SilhouetteMin = thresholdsSet.SilhouetteMin
		}
		if cmd.Flags().Changed("combined-min") {
			t.CombinedMin = thresholdsSet.CombinedMin
		}
		if cmd.Flags().Changed("processing-time-max") {
			t.ProcessingTimeMax = thresholdsSet.ProcessingTimeMax
		}
		if cmd.Flags().Changed("memory-usage-max") {
			t.MemoryUsageMax = thresholdsSet.MemoryUsageMax
		}

		if err := e.Monitor.UpdateThresholds(t); err != nil {
			return eris.Wrap(err, "set thresholds")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(e.Monitor.Thresholds())
	},
}

func init() {
	thresholdsSetCmd.Flags().Float64Var(&thresholdsSet.SilhouetteMin, "silhouette-min", 0, "minimum silhouette score")
	thresholdsSetCmd.Flags().Float64Var(&thresholdsSet.CombinedMin, "combined-min", 0, "minimum combined quality score")
	thresholdsSetCmd.Flags().Float64Var(&thresholdsSet.ProcessingTimeMax, "processing-time-max", 0, "maximum processing time in seconds")
	thresholdsSetCmd.Flags().Float64Var(&thresholdsSet.MemoryUsageMax, "memory-usage-max", 0, "maximum memory usage in MB")
	thresholdsCmd.AddCommand(thresholdsGetCmd)
	thresholdsCmd.AddCommand(thresholdsSetCmd)
	rootCmd.AddCommand(thresholdsCmd)
}
