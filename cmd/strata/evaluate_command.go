package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strata/internal/api"
	"strata/internal/placement"
)

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "evaluate [id|name]",
		Short: "Score placement for one object or the whole fleet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				var (
					recommendations []*placement.Recommendation
					err             error
				)
				if len(args) == 1 {
					obj, lookupErr := lookupObject(cmd, svc, args[0])
					if lookupErr != nil {
						return lookupErr
					}
					rec, evalErr := svc.Evaluate(cmd.Context(), obj.ID)
					if evalErr != nil {
						return evalErr
					}
					recommendations = []*placement.Recommendation{rec}
				} else {
					recommendations, err = svc.EvaluateAll(cmd.Context())
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, recommendations)
				}

				out := cmd.OutOrStdout()
				if len(recommendations) == 0 {
					fmt.Fprintln(out, "No objects to evaluate")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(recommendations))
				for _, rec := range recommendations {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ObjectID, 10),
						rec.ObjectName,
						colorizeTier(rec.CurrentTier, colorize),
						colorizeTier(rec.RecommendedTier, colorize),
						fmt.Sprintf("%.1f", rec.Score),
						formatMoney(rec.MonthlySavings),
						yesNo(rec.ShouldMigrate),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Current", "Recommended", "Score", "Savings/mo", "Migrate"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
				if len(recommendations) == 1 {
					fmt.Fprintln(out, recommendations[0].Reasoning)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
