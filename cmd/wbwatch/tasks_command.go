package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wbwatch/internal/config"
	"wbwatch/internal/sheets"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect the Tasks sheet",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recently recorded orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *sheets.Store) error {
				tasks, err := store.RecentTasks(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No recorded orders")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						task.TaskNo,
						task.Warehouse,
						task.Status,
						task.ArticleID,
						task.ProductName,
						task.Sticker,
						formatTimestamp(task.ProcessedDate),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Task", "Warehouse", "Status", "Article", "Product", "Sticker", "Processed"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to show")

	completeCmd := &cobra.Command{
		Use:   "complete <warehouse> <order>",
		Short: "Mark a recorded order as completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *sheets.Store) error {
				warehouse, orderID := args[0], args[1]
				ok, err := store.SetTaskStatus(cmd.Context(), warehouse, orderID, sheets.TaskStatusCompleted)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("order %s at %s is not in the Tasks sheet", orderID, warehouse)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Order %s at %s marked %s\n", orderID, warehouse, sheets.TaskStatusCompleted)
				return nil
			})
		},
	}

	tasksCmd.AddCommand(listCmd, completeCmd)
	return tasksCmd
}
