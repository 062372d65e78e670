package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage unified sessions",
}

var sessionsAll bool

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		sessions := app.sessions.List(sessionsAll)
		if len(sessions) == 0 {
			fmt.Println(dimStyle.Render("No sessions."))
			return nil
		}

		for _, s := range sessions {
			level := "lite"
			if s.WorkflowBinding != nil {
				level = s.WorkflowBinding.Level
			}
			fmt.Printf("%s  %s  %s  %s  %s\n",
				dimStyle.Render(s.ID),
				statusStyle(s.Status).Render(fmt.Sprintf("%-9s", s.Status)),
				fmt.Sprintf("%-6s", level),
				s.UpdatedAt.Local().Format("2006-01-02 15:04"),
				s.Name)
		}
		return nil
	},
}

var sessionsResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Reactivate a paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.sessions.Resume(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s %s (%s)\n", successStyle.Render("Resumed"), s.ID, s.Name)
		for backend, token := range s.BackendSessions {
			fmt.Printf("  %s %s\n", headingStyle.Render(backend+":"), dimStyle.Render(token))
		}
		return nil
	},
}

var sessionsArchiveCmd = &cobra.Command{
	Use:   "archive <session-id>",
	Short: "Archive a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.sessions.Archive(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", successStyle.Render("Archived"), args[0])
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's task history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.sessions.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", headingStyle.Render("Session:"), s.ID)
		fmt.Printf("%s %s\n", headingStyle.Render("Name:"), s.Name)
		fmt.Printf("%s %s\n", headingStyle.Render("Status:"), statusStyle(s.Status).Render(s.Status))
		if len(s.TaskHistory) == 0 {
			fmt.Println(dimStyle.Render("No tasks recorded."))
			return nil
		}
		fmt.Println(headingStyle.Render("Tasks:"))
		for _, task := range s.TaskHistory {
			fmt.Printf("  %s  %s  %s\n",
				statusStyle(task.Status).Render(fmt.Sprintf("%-11s", task.Status)),
				fmt.Sprintf("%-8s", task.AssignedBackend),
				task.Description)
		}
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().BoolVarP(&sessionsAll, "all", "a", false, "include archived sessions")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsResumeCmd)
	sessionsCmd.AddCommand(sessionsArchiveCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
