// File: cmd/task.go
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
	"github.com/vatsal-bst/bluestacksmcp/internal/device"
	"github.com/vatsal-bst/bluestacksmcp/internal/executor"
	"github.com/vatsal-bst/bluestacksmcp/internal/observability"
	"github.com/vatsal-bst/bluestacksmcp/internal/orchestrator"
	"github.com/vatsal-bst/bluestacksmcp/internal/reasoning"
	"github.com/vatsal-bst/bluestacksmcp/internal/reporting"
	"github.com/vatsal-bst/bluestacksmcp/internal/snapshot"
	"github.com/vatsal-bst/bluestacksmcp/internal/store"
)

var (
	taskAppPackage string
	taskMaxSteps   int
	taskTimeBudget time.Duration
	taskAsFeature  bool
)

var taskCmd = &cobra.Command{
	Use:   "task [goal]",
	Short: "Run a single task against the emulator and print the report.",
	Long: `Runs one goal-directed session synchronously and writes the report as
markdown to stdout. With --feature, the argument is treated as a feature
description and wrapped into a verification goal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		goal := schemas.Goal{
			Text:       strings.Join(args, " "),
			AppPackage: taskAppPackage,
			MaxSteps:   taskMaxSteps,
			TimeBudget: taskTimeBudget,
		}
		if taskAsFeature {
			featureGoal, err := orchestrator.FeatureGoal(strings.Join(args, " "), taskAppPackage)
			if err != nil {
				return err
			}
			featureGoal.MaxSteps = taskMaxSteps
			featureGoal.TimeBudget = taskTimeBudget
			goal = featureGoal
		}

		adb := device.NewADB(appConfig.Device, logger)
		driver := device.NewDriver(adb, appConfig.Device, logger)
		builder := snapshot.NewBuilder(driver, *appConfig, logger)
		exec := executor.New(driver, *appConfig, logger)

		llmClient, err := reasoning.NewGeminiClient(appConfig.LLM, logger)
		if err != nil {
			return err
		}
		reasoner := reasoning.NewEngine(llmClient, logger)

		engine := orchestrator.NewEngine(builder, exec, reasoner, appConfig.Engine, nil, logger)

		// Ctrl-C aborts the session; the partial report still prints.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := engine.Run(ctx, appConfig.Device.Serial, goal)
		if err != nil {
			return err
		}

		report := reporting.Synthesize(session)

		if archive, err := store.Open(appConfig.Archive.Path, logger); err == nil {
			if err := archive.Save(context.Background(), session, report); err != nil {
				logger.Warn("failed to archive session", zap.Error(err))
			}
			archive.Close()
		}

		return reporting.WriteMarkdown(os.Stdout, report)
	},
}

func init() {
	taskCmd.Flags().StringVar(&taskAppPackage, "app", "", "package name of the app under test")
	taskCmd.Flags().IntVar(&taskMaxSteps, "max-steps", 0, "step budget override (default 40)")
	taskCmd.Flags().DurationVar(&taskTimeBudget, "time-budget", 0, "wall clock budget override (default 5m)")
	taskCmd.Flags().BoolVar(&taskAsFeature, "feature", false, "treat the argument as a feature description to verify")
	rootCmd.AddCommand(taskCmd)
}
