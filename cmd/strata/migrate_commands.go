package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strata/internal/api"
	"strata/internal/store"
	"strata/internal/tier"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Submit and inspect tier migrations",
	}

	migrateCmd.AddCommand(newMigrateSubmitCommand(ctx))
	migrateCmd.AddCommand(newMigrateStatusCommand(ctx))
	migrateCmd.AddCommand(newMigrateRetryCommand(ctx))
	migrateCmd.AddCommand(newMigrateListCommand(ctx))

	return migrateCmd
}

func newMigrateSubmitCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <id|name> <tier>",
		Short: "Queue a migration to the target tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				obj, err := lookupObject(cmd, svc, args[0])
				if err != nil {
					return err
				}
				target, err := tier.Parse(args[1])
				if err != nil {
					return err
				}
				task, err := svc.SubmitMigration(cmd.Context(), obj.ID, target)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Queued task #%d: %q %s -> %s (a running daemon will pick it up)\n",
					task.ID, obj.Name, displayTier(task.SourceTier), displayTier(task.TargetTier))
				return nil
			})
		},
	}
	return cmd
}

func newMigrateStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show one migration task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				taskID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid task id %q", args[0])
				}
				task, err := svc.GetTask(cmd.Context(), taskID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, task)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task #%d (object %d)\n", task.ID, task.ObjectID)
				fmt.Fprintf(out, "  Move:      %s -> %s\n", displayTier(task.SourceTier), displayTier(task.TargetTier))
				fmt.Fprintf(out, "  Status:    %s\n", task.Status)
				fmt.Fprintf(out, "  Progress:  %.0f%%\n", task.ProgressPercent)
				fmt.Fprintf(out, "  Retries:   %d\n", task.RetryCount)
				if task.LastError != "" {
					fmt.Fprintf(out, "  Last err:  %s\n", task.LastError)
				}
				fmt.Fprintf(out, "  Started:   %s\n", formatOptionalTimestamp(task.StartedAt))
				fmt.Fprintf(out, "  Completed: %s\n", formatOptionalTimestamp(task.CompletedAt))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newMigrateRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Re-queue a failed migration that has retries left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				taskID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid task id %q", args[0])
				}
				task, err := svc.RetryTask(cmd.Context(), taskID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task #%d re-queued (retry %d)\n", task.ID, task.RetryCount)
				return nil
			})
		},
	}
	return cmd
}

func newMigrateListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFilter string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List migration tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *api.Service) error {
				var statuses []store.TaskStatus
				if statusFilter != "" {
					status, ok := store.ParseStatus(statusFilter)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFilter)
					}
					statuses = append(statuses, status)
				}
				tasks, err := svc.ListTasks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, tasks)
				}

				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No migration tasks")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						strconv.FormatInt(task.ID, 10),
						strconv.FormatInt(task.ObjectID, 10),
						fmt.Sprintf("%s -> %s", displayTier(task.SourceTier), displayTier(task.TargetTier)),
						string(task.Status),
						fmt.Sprintf("%.0f%%", task.ProgressPercent),
						strconv.Itoa(task.RetryCount),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Task", "Object", "Move", "Status", "Progress", "Retries"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by task status")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
