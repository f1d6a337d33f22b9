package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	alertsCourseID     int64
	alertsResolveNotes string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and resolve quality alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var courseFilter *int64
		if cmd.Flags().Changed("course") {
			courseFilter = &alertsCourseID
		}

		alerts, err := e.Monitor.ActiveAlerts(ctx, courseFilter)
		if err != nil {
			return eris.Wrap(err, "list alerts")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(alerts)
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Mark an alert resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		alert, err := e.Monitor.ResolveAlert(ctx, args[0], alertsResolveNotes)
		if err != nil {
			return eris.Wrap(err, "resolve alert")
		}

		zap.L().Info("alert resolved",
			zap.String("alert_id", alert.ID),
			zap.String("type", string(alert.AlertType)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(alert)
	},
}

func init() {
	alertsListCmd.Flags().Int64Var(&alertsCourseID, "course", 0, "filter by course ID")
	alertsResolveCmd.Flags().StringVar(&alertsResolveNotes, "notes", "", "resolution notes")
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	rootCmd.AddCommand(alertsCmd)
}
