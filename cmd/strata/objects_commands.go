package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strata/internal/api"
	"strata/internal/store"
)

func newObjectsCommand(ctx *commandContext) *cobra.Command {
	objectsCmd := &cobra.Command{
		Use:   "objects",
		Short: "Inspect and manage tracked data objects",
	}

	objectsCmd.AddCommand(newObjectsListCommand(ctx))
	objectsCmd.AddCommand(newObjectsShowCommand(ctx))
	objectsCmd.AddCommand(newObjectsAddCommand(ctx))
	objectsCmd.AddCommand(newObjectsTouchCommand(ctx))

	return objectsCmd
}

func newObjectsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				objects, err := svc.ListObjects(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, objects)
				}
				out := cmd.OutOrStdout()
				if len(objects) == 0 {
					fmt.Fprintln(out, "No objects tracked")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(objects))
				for _, obj := range objects {
					rows = append(rows, []string{
						strconv.FormatInt(obj.ID, 10),
						obj.Name,
						colorizeTier(obj.CurrentTier, colorize),
						formatBytes(obj.SizeBytes),
						strconv.FormatInt(obj.AccessCount, 10),
						formatMoney(obj.MonthlyCost),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Tier", "Size", "Accesses", "Cost/mo"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newObjectsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show one object with its recent migration history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				obj, err := lookupObject(cmd, svc, args[0])
				if err != nil {
					return err
				}
				history, err := svc.MigrationHistory(cmd.Context(), obj.ID, 10)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"object": obj, "history": history})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Object #%d: %s\n", obj.ID, obj.Name)
				fmt.Fprintf(out, "  Tier:       %s\n", colorizeTier(obj.CurrentTier, colorize))
				fmt.Fprintf(out, "  Location:   %s\n", obj.Location)
				fmt.Fprintf(out, "  Size:       %s\n", formatBytes(obj.SizeBytes))
				fmt.Fprintf(out, "  Accesses:   %d\n", obj.AccessCount)
				fmt.Fprintf(out, "  Cost/mo:    %s\n", formatMoney(obj.MonthlyCost))
				if obj.ContentType != "" {
					fmt.Fprintf(out, "  Type:       %s\n", obj.ContentType)
				}
				fmt.Fprintf(out, "  Created:    %s\n", formatTimestamp(obj.CreatedAt))

				if len(history) > 0 {
					fmt.Fprintln(out)
					for _, line := range renderSectionHeader("Migration history", colorize) {
						fmt.Fprintln(out, line)
					}
					rows := make([][]string, 0, len(history))
					for _, task := range history {
						rows = append(rows, []string{
							strconv.FormatInt(task.ID, 10),
							fmt.Sprintf("%s -> %s", displayTier(task.SourceTier), displayTier(task.TargetTier)),
							string(task.Status),
							fmt.Sprintf("%.0f%%", task.ProgressPercent),
							formatOptionalTimestamp(task.CompletedAt),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Task", "Move", "Status", "Progress", "Completed"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newObjectsAddCommand(ctx *commandContext) *cobra.Command {
	var (
		sizeBytes   int64
		tierName    string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new data object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				obj, err := svc.CreateObject(cmd.Context(), api.CreateObjectParams{
					Name:        args[0],
					SizeBytes:   sizeBytes,
					Tier:        tierName,
					ContentType: contentType,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered object #%d %q in %s (%s, %s/month)\n",
					obj.ID, obj.Name, displayTier(obj.CurrentTier),
					formatBytes(obj.SizeBytes), formatMoney(obj.MonthlyCost))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&sizeBytes, "size", 0, "Object size in bytes")
	cmd.Flags().StringVar(&tierName, "tier", "warm", "Initial tier (hot, warm, cold)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Optional MIME type")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newObjectsTouchCommand(ctx *commandContext) *cobra.Command {
	var (
		kind      string
		latencyMS float64
	)

	cmd := &cobra.Command{
		Use:   "touch <id|name>",
		Short: "Record an access event against an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				obj, err := lookupObject(cmd, svc, args[0])
				if err != nil {
					return err
				}
				if err := svc.RecordAccess(cmd.Context(), obj.ID, store.AccessKind(kind), latencyMS); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s access to %q\n", kind, obj.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(store.AccessRead), "Access kind (read or write)")
	cmd.Flags().Float64Var(&latencyMS, "latency", 0, "Observed latency in milliseconds")
	return cmd
}

// lookupObject resolves a numeric id or an object name.
func lookupObject(cmd *cobra.Command, svc *api.Service, arg string) (*store.DataObject, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return svc.GetObject(cmd.Context(), id)
	}
	return svc.GetObjectByName(cmd.Context(), arg)
}
