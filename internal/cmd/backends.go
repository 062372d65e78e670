package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show configured backends and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		for _, name := range app.adapters.Names() {
			a, err := app.adapters.Resolve(name)
			if err != nil {
				continue
			}
			state := successStyle.Render("available")
			if !a.IsAvailable(cmd.Context()) {
				state = errorStyle.Render("unavailable")
			}
			marker := ""
			if name == app.cfg.Backends.Default {
				marker = dimStyle.Render(" (default)")
			}
			fmt.Printf("%-8s %s%s\n", name, state, marker)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
