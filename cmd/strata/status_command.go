package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strata/internal/api"
	"strata/internal/tier"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show fleet, queue, and predictor status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				status, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, statusView(status))
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Objects", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := make([][]string, 0, len(tier.All()))
				for _, t := range tier.All() {
					rows = append(rows, []string{
						colorizeTier(t, colorize),
						strconv.Itoa(status.ObjectsByTier[t]),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Tier", "Objects"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				fmt.Fprintf(out, "Total: %d objects, %s/month\n\n",
					status.Objects, formatMoney(status.TotalMonthlyCost))

				for _, line := range renderSectionHeader("Migration queue", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Pending", "In progress", "Completed", "Failed"},
					[][]string{{
						strconv.Itoa(status.Queue.Pending),
						strconv.Itoa(status.Queue.InProgress),
						strconv.Itoa(status.Queue.Completed),
						strconv.Itoa(status.Queue.Failed),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight}))

				for _, line := range renderSectionHeader("Predictor", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "Trained: %s\n", yesNo(status.PredictorTrained))
				if report := status.LastTraining; report != nil {
					fmt.Fprintf(out, "Model %s trained %s (train acc %.1f%%, test acc %.1f%%)\n",
						report.ModelVersion, formatTimestamp(report.TrainedAt),
						report.TrainAccuracy*100, report.TestAccuracy*100)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func statusView(status *api.Status) map[string]any {
	byTier := make(map[string]int, len(status.ObjectsByTier))
	for t, count := range status.ObjectsByTier {
		byTier[string(t)] = count
	}
	view := map[string]any{
		"objects":            status.Objects,
		"objects_by_tier":    byTier,
		"total_monthly_cost": status.TotalMonthlyCost,
		"queue": map[string]int{
			"pending":     status.Queue.Pending,
			"in_progress": status.Queue.InProgress,
			"completed":   status.Queue.Completed,
			"failed":      status.Queue.Failed,
		},
		"predictor_trained": status.PredictorTrained,
	}
	if status.LastTraining != nil {
		view["last_training"] = status.LastTraining
	}
	return view
}
