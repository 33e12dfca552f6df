package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := newEngine(nil)
		tree, err := engine.Hierarchy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		encoded, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := newEngine(nil)
		cancelled, err := engine.Cancel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !cancelled {
			fmt.Println("Task is already terminal")
			return nil
		}
		fmt.Println(color.RedString("Cancelled"))
		return nil
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <task-id> <priority>",
	Short: "Change a task's priority",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid priority %q: %w", args[1], err)
		}
		engine := newEngine(nil)
		if err := engine.Reorder(cmd.Context(), args[0], priority); err != nil {
			return err
		}
		fmt.Printf("Priority set to %d\n", priority)
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Return a failed or cancelled task to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := newEngine(nil)
		task, err := engine.Requeue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s (attempt %d)\n", color.GreenString("Requeued:"), task.Title, task.RetryCount+1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(reorderCmd)
	rootCmd.AddCommand(retryCmd)
}
