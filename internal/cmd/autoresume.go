package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devswarm/swarm/internal/autoresume"
)

var autoresumeCmd = &cobra.Command{
	Use:   "autoresume",
	Short: "Scheduled bundle resume",
	Long: `The autoresume poller re-executes parked bundles inside configured
time windows. Run it from cron:

  */15 * * * * swarm autoresume run`,
}

var autoresumeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one poller cycle",
	RunE:  runAutoresumeRun,
}

var autoresumeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show poller status",
	RunE:  runAutoresumeStatus,
}

func init() {
	rootCmd.AddCommand(autoresumeCmd)
	autoresumeCmd.AddCommand(autoresumeRunCmd)
	autoresumeCmd.AddCommand(autoresumeStatusCmd)
}

func newPoller(a *app) *autoresume.Poller {
	return autoresume.New(autoresume.Options{
		Config:  &a.cfg.AutoResume,
		Bundles: a.bundles,
		Alerts:  a.alerts,
		Logger:  a.logger,
	})
}

func runAutoresumeRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return newPoller(a).Run(cmd.Context())
}

func runAutoresumeStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := newPoller(a).Status()
	if err != nil {
		return err
	}

	fmt.Printf("Enabled:      %v\n", info.Enabled)
	fmt.Printf("Timezone:     %s\n", info.Timezone)
	fmt.Printf("Windows:      %s\n", strings.Join(info.Windows, ", "))
	fmt.Printf("In window:    %v\n", info.InWindow)
	fmt.Printf("Next window:  %s\n", info.NextWindow.Format(time.RFC1123))
	fmt.Printf("Pending:      %d bundles\n", info.Pending)
	return nil
}
