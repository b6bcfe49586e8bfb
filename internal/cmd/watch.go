package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/devswarm/swarm/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the active session live",
	Long: `Open a live view of the active session that refreshes as agents
report progress. Press q to quit.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	model, err := tui.NewWatchModel(a.sessions, a.renderer)
	if err != nil {
		return err
	}
	defer model.Close()

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
