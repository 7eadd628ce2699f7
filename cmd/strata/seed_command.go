package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strata/internal/api"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate demo objects with synthetic access patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				objects, err := svc.Seed(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Seeded %d demo objects:\n", len(objects))
				for _, obj := range objects {
					fmt.Fprintf(out, "  #%-3d %-30s %s %s\n",
						obj.ID, obj.Name, displayTier(obj.CurrentTier), formatBytes(obj.SizeBytes))
				}
				fmt.Fprintln(out, "Run `strata evaluate` or `strata train` next.")
				return nil
			})
		},
	}
}
