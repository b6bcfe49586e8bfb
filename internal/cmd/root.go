// Package cmd defines the swarm CLI.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devswarm/swarm/internal/agent"
	"github.com/devswarm/swarm/internal/alert"
	"github.com/devswarm/swarm/internal/autoresume"
	"github.com/devswarm/swarm/internal/bundle"
	"github.com/devswarm/swarm/internal/config"
	"github.com/devswarm/swarm/internal/errors"
	"github.com/devswarm/swarm/internal/logging"
	"github.com/devswarm/swarm/internal/orchestrator"
	"github.com/devswarm/swarm/internal/swarm"
	"github.com/devswarm/swarm/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Staged agent workflow orchestrator",
	Long: `Swarm runs features through a staged agent workflow (architect,
developer, QA, security, tester), tracking each stage as a task in a
persistent session. Interrupted stages are parked in bundles and resumed
automatically inside configured time windows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps the result to an exit code.
func Execute() int {
	return exitCode(rootCmd.Execute(), os.Stderr)
}

// exitCode maps a command result to a process exit code. A
// NeedsHumanError exits 0: a session paused for a person is a normal
// outcome, not a crash.
func exitCode(err error, out io.Writer) int {
	if err == nil {
		return 0
	}
	if errors.IsNeedsHuman(err) {
		fmt.Fprintf(out, "\nSession paused: %s\n", err)
		return 0
	}
	fmt.Fprintf(out, "Error: %s\n", err)
	return 1
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default "+config.ConfigFile()+")")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/swarm")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SWARM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// app bundles the wired components every command needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	sessions *swarm.Manager
	bundles  *bundle.Store
	alerts   *alert.System
	registry *agent.Registry
	renderer *tui.Renderer
	orch     *orchestrator.Orchestrator
}

// newApp loads configuration and wires the engine components.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Paths.StateDir, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	sessions, err := swarm.NewManager(cfg.Paths.StateDir, logger)
	if err != nil {
		return nil, err
	}
	bundles, err := bundle.NewStore(cfg.Paths.StateDir, bundle.GlobalConfig{
		Timezone:   cfg.AutoResume.Timezone,
		MaxRetries: cfg.Bundle.MaxRetries,
		AutoResume: cfg.AutoResume.Enabled,
	}, logger)
	if err != nil {
		return nil, err
	}
	alerts, err := alert.NewSystem(cfg.Paths.StateDir, os.Stderr, logger)
	if err != nil {
		return nil, err
	}

	registry := agent.DefaultRegistry()

	orch := orchestrator.New(orchestrator.Options{
		Sessions:   sessions,
		Bundles:    bundles,
		Alerts:     alerts,
		Registry:   registry,
		Workspace:  cfg.Session.Workspace,
		NextResume: autoresume.NextResumeTime(&cfg.AutoResume),
		Logger:     logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		bundles:  bundles,
		alerts:   alerts,
		registry: registry,
		renderer: tui.NewRenderer(registry),
		orch:     orch,
	}, nil
}

// Close flushes the log file.
func (a *app) Close() {
	_ = a.logger.Close()
}

// resolveSession turns an optional positional session argument into a
// session ID, falling back to the active session.
func (a *app) resolveSession(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	active, err := a.sessions.ActiveSession()
	if err != nil {
		return "", err
	}
	if active == nil {
		return "", errors.ErrNoActiveSession
	}
	return active.ID, nil
}
