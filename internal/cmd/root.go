// Package cmd implements the maw command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gudastudio/maw/internal/adapter"
	"github.com/gudastudio/maw/internal/config"
	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/logging"
	"github.com/gudastudio/maw/internal/session"
	"github.com/gudastudio/maw/internal/skill"
)

var rootCmd = &cobra.Command{
	Use:   "maw",
	Short: "Multi-agent workflow orchestrator",
	Long: `Maw coordinates multiple AI command-line agents under unified sessions.
It runs multi-phase workflows, delegates analysis to bridged backends such
as codex and gemini, and drives persistence loops until a task is done.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./maw.yaml or $HOME/.config/maw/maw.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("maw")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/maw")
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MAW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// app bundles the wired-up core components a subcommand needs.
type app struct {
	cfg       *config.Config
	stateRoot string
	logger    *logging.Logger
	bus       *event.Bus
	sessions  *session.Manager
	adapters  *adapter.Registry
}

// newApp loads configuration and wires the orchestration core.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	stateRoot := cfg.State.ResolveRoot(cwd)
	if err := os.MkdirAll(stateRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create state root: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(stateRoot, logging.ParseLevel(cfg.Logging.Level))
		if err != nil {
			return nil, err
		}
	}

	bus := event.NewBus()
	sessions, err := session.NewManager(stateRoot, logger, bus)
	if err != nil {
		logger.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		stateRoot: stateRoot,
		logger:    logger,
		bus:       bus,
		sessions:  sessions,
		adapters:  adapter.NewFromConfig(cfg, logger),
	}, nil
}

// skills builds the skill registry over the configured search paths.
func (a *app) skills() (*skill.Registry, error) {
	r := skill.NewRegistry(a.cfg.Skills.SearchPaths, a.logger)
	if err := r.Discover(); err != nil {
		return nil, err
	}
	return r, nil
}

// watchSkills starts background skill re-discovery for long-running
// commands when skills.watch is set. It returns once the watcher goroutine
// is launched; the watcher stops when ctx is cancelled.
func (a *app) watchSkills(ctx context.Context) {
	if !a.cfg.Skills.Watch {
		return
	}
	registry, err := a.skills()
	if err != nil {
		a.logger.Warn("skill watching unavailable", "error", err)
		return
	}
	go func() {
		if err := registry.Watch(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("skill watcher stopped", "error", err)
		}
	}()
}

func (a *app) Close() {
	a.logger.Close()
}
