package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/types"
)

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in scheduling order",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.TaskFilter{ProjectID: cfg.ProjectID, Limit: listLimit}
		if listStatus != "" {
			filter.Statuses = []types.TaskStatus{types.TaskStatus(listStatus)}
		}

		tasks, err := store.ListTasks(cmd.Context(), filter)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(tasks) == 0 {
			fmt.Printf("%s\n", gray("No tasks"))
			return nil
		}

		for _, task := range tasks {
			fmt.Printf("%s %3d  %-36s  %-18s %s\n",
				statusBadge(task.Status), task.Priority, task.ID, task.TaskType, task.Title)
			if task.ErrorMessage != "" {
				fmt.Printf("      %s\n", gray(task.ErrorMessage))
			}
		}
		return nil
	},
}

func statusBadge(status types.TaskStatus) string {
	switch status {
	case types.StatusRunning:
		return color.New(color.FgGreen).Sprintf("%-17s", status)
	case types.StatusCompleted:
		return color.New(color.FgCyan).Sprintf("%-17s", status)
	case types.StatusFailed:
		return color.New(color.FgRed).Sprintf("%-17s", status)
	case types.StatusCancelled:
		return color.New(color.FgHiBlack).Sprintf("%-17s", status)
	case types.StatusWaitingApproval:
		return color.New(color.FgYellow).Sprintf("%-17s", status)
	default:
		return fmt.Sprintf("%-17s", status)
	}
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "limit the number of rows")
	rootCmd.AddCommand(listCmd)
}
