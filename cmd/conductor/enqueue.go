package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/types"
)

var (
	enqueueDescription string
	enqueueType        string
	enqueuePersona     string
	enqueueAutonomy    string
	enqueuePriority    int
	enqueueEstimate    int
	enqueueDependsOn   []string
	enqueueParent      string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <title>",
	Short: "Add a task to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine := newEngine(nil)

		autonomy := types.AutonomyLevel(enqueueAutonomy)
		if enqueueAutonomy == "" {
			autonomy = types.AutonomyLevel(cfg.DefaultAutonomy)
		}

		task := &types.Task{
			ProjectID:          cfg.ProjectID,
			ParentID:           enqueueParent,
			Title:              args[0],
			Description:        enqueueDescription,
			TaskType:           types.TaskType(enqueueType),
			AgentPersona:       types.AgentPersona(enqueuePersona),
			AutonomyLevel:      autonomy,
			Priority:           enqueuePriority,
			EstimatedDurationS: enqueueEstimate,
		}

		task, err := engine.Enqueue(ctx, task)
		if err != nil {
			return err
		}

		for _, dep := range enqueueDependsOn {
			if err := engine.AddDependency(ctx, task.ID, dep); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: dependency on %s not recorded: %v\n", dep, err)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s (%s, priority %d, %s)\n",
			green("Queued:"), task.Title, task.ID, task.Priority, task.AutonomyLevel)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVarP(&enqueueDescription, "description", "d", "", "task description handed to the agent")
	enqueueCmd.Flags().StringVarP(&enqueueType, "type", "t", string(types.TypeCodeGeneration), "task type")
	enqueueCmd.Flags().StringVarP(&enqueuePersona, "persona", "P", string(types.PersonaDeveloper), "agent persona")
	enqueueCmd.Flags().StringVarP(&enqueueAutonomy, "autonomy", "a", "", "autonomy level (auto, supervised, approval_gates)")
	enqueueCmd.Flags().IntVarP(&enqueuePriority, "priority", "p", 50, "priority, higher runs first")
	enqueueCmd.Flags().IntVar(&enqueueEstimate, "estimate", 0, "estimated duration in seconds")
	enqueueCmd.Flags().StringSliceVar(&enqueueDependsOn, "depends-on", nil, "task ids that must complete first")
	enqueueCmd.Flags().StringVar(&enqueueParent, "parent", "", "parent task id")
	rootCmd.AddCommand(enqueueCmd)
}
