package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts and open approval gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== "+cfg.ProjectID+" ==="))

		counts, err := store.CountTasksByStatus(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}

		order := []types.TaskStatus{
			types.StatusPending, types.StatusQueued, types.StatusRunning,
			types.StatusWaitingApproval, types.StatusCompleted,
			types.StatusFailed, types.StatusCancelled,
		}
		fmt.Printf("%s\n", yellow("Tasks:"))
		total := 0
		for _, st := range order {
			if counts[st] > 0 {
				fmt.Printf("  %-17s %d\n", st, counts[st])
				total += counts[st]
			}
		}
		if total == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}

		gates, err := store.ListPendingGates(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", yellow("Pending gates:"))
		if len(gates) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		for _, gate := range gates {
			fmt.Printf("  %-36s %-10s %s\n", gate.ID, gate.GateType, gate.Title)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
