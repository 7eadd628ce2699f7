package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strata/internal/api"
	"strata/internal/tier"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "predict <id|name>",
		Short: "Classify an object's tier with the trained model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				obj, err := lookupObject(cmd, svc, args[0])
				if err != nil {
					return err
				}
				prediction, err := svc.Predict(cmd.Context(), obj.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, prediction)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Predicted tier for %q: %s (model %s)\n",
					obj.Name, colorizeTier(prediction.PredictedTier, colorize), prediction.ModelVersion)
				for _, t := range tier.All() {
					fmt.Fprintf(out, "  %-5s %.1f%%\n", displayTier(t), prediction.Confidence(t)*100)
				}
				fmt.Fprintln(out, prediction.Reasoning)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a fresh tier prediction model on the current fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				report, err := svc.Train(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Trained model %s on %d samples (%d held out): train accuracy %.1f%%, test accuracy %.1f%%\n",
					report.ModelVersion, report.TrainSamples, report.TestSamples,
					report.TrainAccuracy*100, report.TestAccuracy*100)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
