package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage agent skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		registry, err := app.skills()
		if err != nil {
			return err
		}

		skills := registry.List()
		if len(skills) == 0 {
			fmt.Println(dimStyle.Render("No skills found."))
			return nil
		}

		for _, s := range skills {
			state := successStyle.Render("enabled")
			if !s.Enabled {
				state = dimStyle.Render("disabled")
			}
			backend := ""
			if s.Backend != "" {
				backend = dimStyle.Render(" [" + s.Backend + "]")
			}
			fmt.Printf("%s  %-9s %s%s  %s\n",
				state, s.Type, headingStyle.Render(s.Name), backend, dimStyle.Render(s.Description))
		}
		return nil
	},
}

var skillsInstallCmd = &cobra.Command{
	Use:   "install <path>",
	Short: "Install a skill from a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		registry, err := app.skills()
		if err != nil {
			return err
		}
		if err := registry.Install(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", successStyle.Render("Installed"), args[0])
		return nil
	},
}

var skillsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Scaffold a new skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		registry, err := app.skills()
		if err != nil {
			return err
		}
		if err := registry.CreateFromTemplate(args[0]); err != nil {
			return err
		}

		s, err := registry.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s at %s\n", successStyle.Render("Created"), s.Name, dimStyle.Render(s.Path))
		return nil
	},
}

var skillsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a skill",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setSkillEnabled(args[0], true) },
}

var skillsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a skill",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setSkillEnabled(args[0], false) },
}

func setSkillEnabled(name string, enabled bool) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	registry, err := app.skills()
	if err != nil {
		return err
	}
	if err := registry.SetEnabled(name, enabled); err != nil {
		return err
	}

	verb := "Enabled"
	if !enabled {
		verb = "Disabled"
	}
	fmt.Printf("%s %s\n", successStyle.Render(verb), name)
	return nil
}

func init() {
	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsInstallCmd)
	skillsCmd.AddCommand(skillsNewCmd)
	skillsCmd.AddCommand(skillsEnableCmd)
	skillsCmd.AddCommand(skillsDisableCmd)
	rootCmd.AddCommand(skillsCmd)
}
