package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/workflow"
)

var (
	runLevel   string
	runWorkDir string
	runName    string
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a workflow for a task",
	Long: `Run executes a workflow template against the given task. The level
selects the template: lite (single execution), quick (plan + execute),
full (plan, delegate, review), parallel (dual analysis), or staged
(the full review pipeline).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.Join(args, " ")

		build, ok := workflow.Templates[runLevel]
		if !ok {
			return errors.NewValidationError("unknown workflow level").
				WithField("level").WithValue(runLevel)
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		workDir := runWorkDir
		if workDir == "" {
			workDir, err = os.Getwd()
			if err != nil {
				return err
			}
		}

		watchCtx, stopWatch := context.WithCancel(cmd.Context())
		defer stopWatch()
		app.watchSkills(watchCtx)

		// Show phase progress as it happens.
		app.bus.Subscribe("workflow.phase_started", func(e event.Event) {
			if pe, ok := e.(event.PhaseStartedEvent); ok {
				fmt.Printf("%s %s\n", dimStyle.Render("▸"),
					fmt.Sprintf("%s (%s via %s)", pe.PhaseID, pe.PhaseType, pe.Backend))
			}
		})
		app.bus.Subscribe("workflow.phase_completed", func(e event.Event) {
			if pe, ok := e.(event.PhaseCompletedEvent); ok {
				if pe.Success {
					fmt.Printf("%s %s\n", successStyle.Render("✓"), pe.PhaseID)
				} else {
					fmt.Printf("%s %s: %s\n", errorStyle.Render("✗"), pe.PhaseID, pe.Error)
				}
			}
		})

		engine := workflow.NewEngine(app.adapters, app.sessions, app.bus, app.logger)
		result, err := engine.Execute(cmd.Context(), build(), workflow.ExecutionContext{
			Task:        task,
			WorkDir:     workDir,
			SessionName: runName,
		})
		if err != nil {
			return err
		}

		fmt.Println()
		if result.Success {
			fmt.Println(successStyle.Render("Workflow completed."))
		} else {
			fmt.Println(errorStyle.Render("Workflow failed: " + result.Err))
		}
		fmt.Printf("%s %s\n", headingStyle.Render("Session:"), result.Session.ID)
		fmt.Printf("%s %d\n", headingStyle.Render("Tasks:"), len(result.Tasks))
		if len(result.Artifacts) > 0 {
			fmt.Printf("%s %d\n", headingStyle.Render("Artifacts:"), len(result.Artifacts))
		}

		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runLevel, "level", "l", "lite", "workflow level (lite, quick, full, parallel, staged)")
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "d", "", "working directory (default: current directory)")
	runCmd.Flags().StringVarP(&runName, "name", "n", "", "session display name (default: the task)")
	rootCmd.AddCommand(runCmd)
}
