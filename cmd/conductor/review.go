package main

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively approve or reject pending gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine := newEngine(nil)

		gates, err := engine.ListGates(ctx)
		if err != nil {
			return err
		}
		if len(gates) == 0 {
			fmt.Println("No pending gates")
			return nil
		}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		for _, gate := range gates {
			task, err := engine.Get(ctx, gate.TaskID)
			if err != nil {
				return err
			}

			fmt.Printf("\n%s\n", cyan("=== "+gate.Title+" ==="))
			fmt.Printf("%s %s (%s)\n", yellow("Gate:"), gate.ID, gate.GateType)
			if task != nil {
				fmt.Printf("%s %s [%s]\n", yellow("Task:"), task.Title, task.TaskType)
			}
			if gate.Description != "" {
				fmt.Printf("%s\n", gate.Description)
			}
			if gate.ReviewData != "" {
				fmt.Printf("\n%s\n%s\n", yellow("Output:"), gate.ReviewData)
			}
			fmt.Printf("\n%s\n", gray("[a]pprove / [r]eject / [s]kip / [q]uit"))

			decided := false
			for !decided {
				line, err := rl.Readline()
				if err != nil {
					return nil
				}
				switch strings.ToLower(strings.TrimSpace(line)) {
				case "a", "approve":
					notes := promptNotes(rl)
					if _, err := engine.ApproveGate(ctx, gate.ID, "cli", notes); err != nil {
						return err
					}
					fmt.Println(color.GreenString("Approved"))
					decided = true
				case "r", "reject":
					notes := promptNotes(rl)
					if _, err := engine.RejectGate(ctx, gate.ID, "cli", notes); err != nil {
						return err
					}
					fmt.Println(color.RedString("Rejected"))
					decided = true
				case "s", "skip":
					decided = true
				case "q", "quit":
					return nil
				default:
					fmt.Println(gray("a, r, s, or q"))
				}
			}
		}
		return nil
	},
}

func promptNotes(rl *readline.Instance) string {
	rl.SetPrompt("notes (optional): ")
	defer rl.SetPrompt("> ")
	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

var approveCmd = &cobra.Command{
	Use:   "approve <gate-id>",
	Short: "Approve a pending gate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := newEngine(nil)
		gate, err := engine.ApproveGate(cmd.Context(), args[0], "cli", "")
		if err != nil {
			return err
		}
		if gate == nil {
			fmt.Println("Gate already resolved")
			return nil
		}
		fmt.Println(color.GreenString("Approved"))
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <gate-id>",
	Short: "Reject a pending gate and cancel its task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := newEngine(nil)
		gate, err := engine.RejectGate(cmd.Context(), args[0], "cli", "")
		if err != nil {
			return err
		}
		if gate == nil {
			fmt.Println("Gate already resolved")
			return nil
		}
		fmt.Println(color.RedString("Rejected"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
}
