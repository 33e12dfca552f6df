package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductorhq/conductor/internal/agent"
	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/resolver"
	"github.com/conductorhq/conductor/internal/supervisor"
	"github.com/conductorhq/conductor/internal/types"
)

var (
	runThreshold int
	runMaxIdle   string
	runNoApprove bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomous supervisor until idle or interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		driver, err := agent.NewAnthropicDriver(&agent.AnthropicConfig{
			Model:             cfg.Agent.Model,
			MaxTokens:         cfg.Agent.MaxTokens,
			RequestsPerMinute: cfg.Agent.RequestsPerMinute,
		})
		if err != nil {
			return err
		}

		engine := newEngine(driver)

		checkInterval, err := cfg.CheckInterval()
		if err != nil {
			return err
		}
		maxIdle, err := cfg.MaxIdle()
		if err != nil {
			return err
		}
		if runMaxIdle != "" {
			maxIdle, err = time.ParseDuration(runMaxIdle)
			if err != nil {
				return fmt.Errorf("invalid --max-idle: %w", err)
			}
		}
		threshold := cfg.Supervisor.AutoApproveThreshold
		if runThreshold > 0 {
			threshold = runThreshold
		}

		sup := supervisor.New(supervisor.Config{
			ProjectID:            cfg.ProjectID,
			ProjectPath:          cfg.ProjectPath,
			DefaultAutonomy:      types.AutonomyLevel(cfg.DefaultAutonomy),
			CheckInterval:        checkInterval,
			AutoApproveThreshold: threshold,
			MaxIdle:              maxIdle,
			EnableAutoApproval:   cfg.AutoApprovalEnabled() && !runNoApprove,
		}, engine, resolver.New(), store)

		queueEvents, cancelQueue := engine.Subscribe()
		defer cancelQueue()
		supEvents, cancelSup := sup.Subscribe()
		defer cancelSup()

		if err := sup.Start(ctx); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s project=%s autonomy=%s threshold=%d\n",
			green("Supervisor running:"), cfg.ProjectID, cfg.DefaultAutonomy, threshold)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-sigCh:
				fmt.Println("\nShutting down...")
				return sup.Stop(ctx)
			case ev, ok := <-supEvents:
				if !ok {
					return nil
				}
				printEvent(ev)
				if ev.Type == events.TypeAutonomousIdleTimeout {
					fmt.Println("Idle limit reached, exiting")
					return sup.Stop(ctx)
				}
			case ev, ok := <-queueEvents:
				if !ok {
					return nil
				}
				printEvent(ev)
			}
		}
	},
}

func printEvent(ev events.Event) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	stamp := ev.Timestamp.Format("15:04:05")

	switch ev.Type {
	case events.TypeTaskProgress:
		// Streaming chunks are too chatty for the console
		return
	case events.TypeTaskCompleted:
		fmt.Printf("%s %s %s\n", gray(stamp), color.GreenString("completed"), ev.TaskID)
	case events.TypeTaskFailed:
		fmt.Printf("%s %s %s\n", gray(stamp), color.RedString("failed"), ev.TaskID)
	case events.TypeTaskCancelled:
		fmt.Printf("%s %s %s\n", gray(stamp), gray("cancelled"), ev.TaskID)
	case events.TypeTaskApprovalRequired, events.TypeManualApprovalNeeded:
		fmt.Printf("%s %s %s\n", gray(stamp), color.YellowString(string(ev.Type)), ev.TaskID)
	case events.TypeAutoApproved:
		fmt.Printf("%s %s %s score=%v\n", gray(stamp), color.CyanString("auto-approved"), ev.TaskID, ev.Data["score"])
	default:
		if ev.TaskID != "" {
			fmt.Printf("%s %s %s\n", gray(stamp), ev.Type, ev.TaskID)
		} else {
			fmt.Printf("%s %s\n", gray(stamp), ev.Type)
		}
	}
}

func init() {
	runCmd.Flags().IntVar(&runThreshold, "threshold", 0, "auto-approve score threshold (overrides config)")
	runCmd.Flags().StringVar(&runMaxIdle, "max-idle", "", "stop after this long without activity, e.g. 30m")
	runCmd.Flags().BoolVar(&runNoApprove, "no-auto-approve", false, "disable the auto-approval sweep")
	rootCmd.AddCommand(runCmd)
}
