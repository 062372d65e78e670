package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/ralph"
)

var (
	ralphMaxIterations int
	ralphMarker        string
	ralphBackend       string
	ralphWorkDir       string
	ralphDelay         time.Duration
)

var ralphCmd = &cobra.Command{
	Use:   "ralph <prompt>",
	Short: "Loop a prompt against one backend until it reports completion",
	Long: `Ralph feeds the same prompt to a backend over and over until the
backend's output contains the completion marker, the iteration cap is
reached, or the loop is interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		workDir := ralphWorkDir
		if workDir == "" {
			workDir, err = os.Getwd()
			if err != nil {
				return err
			}
		}

		watchCtx, stopWatch := context.WithCancel(cmd.Context())
		defer stopWatch()
		app.watchSkills(watchCtx)

		app.bus.Subscribe("ralph.iteration", func(e event.Event) {
			if ie, ok := e.(event.RalphIterationEvent); ok {
				mark := successStyle.Render("✓")
				if !ie.Success {
					mark = errorStyle.Render("✗")
				}
				fmt.Printf("%s iteration %d\n", mark, ie.Iteration)
			}
		})

		marker := ralphMarker
		if marker == "" {
			marker = app.cfg.Ralph.CompletionMarker
		}
		maxIterations := ralphMaxIterations
		if maxIterations == 0 {
			maxIterations = app.cfg.Ralph.MaxIterations
		}
		delay := ralphDelay
		if delay == 0 {
			delay = app.cfg.Ralph.Delay()
		}

		ctrl := ralph.NewController(app.adapters, app.sessions, app.bus, app.logger)
		loop, err := ctrl.Start(cmd.Context(), prompt, ralph.Options{
			MaxIterations:    maxIterations,
			CompletionMarker: marker,
			Backend:          ralphBackend,
			WorkDir:          workDir,
			Delay:            delay,
		})
		if err != nil {
			return err
		}

		if err := loop.Wait(cmd.Context()); err != nil {
			// Interrupted; ask the loop to stop and wait for it to settle.
			_ = loop.Cancel()
			_ = loop.Wait(context.Background())
		}

		summary := loop.Status()
		fmt.Println()
		fmt.Printf("%s %s after %d iteration(s)\n",
			headingStyle.Render("Loop"),
			statusStyle(summary.State).Render(summary.State),
			summary.TotalIterations)
		fmt.Printf("%s %s\n", headingStyle.Render("Session:"), loop.SessionID())

		if !summary.Completed && !summary.Cancelled {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	ralphCmd.Flags().IntVarP(&ralphMaxIterations, "max-iterations", "m", 0, "iteration cap (default from config)")
	ralphCmd.Flags().StringVar(&ralphMarker, "marker", "", "completion marker substring (default from config)")
	ralphCmd.Flags().StringVarP(&ralphBackend, "backend", "b", "auto", "backend to drive (claude, codex, gemini, or auto)")
	ralphCmd.Flags().StringVarP(&ralphWorkDir, "workdir", "d", "", "working directory (default: current directory)")
	ralphCmd.Flags().DurationVar(&ralphDelay, "delay", 0, "pause between iterations (default from config)")
	rootCmd.AddCommand(ralphCmd)
}
