package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var continueTaskID string

var continueCmd = &cobra.Command{
	Use:   "continue [session-id]",
	Short: "Resume a session's workflow",
	Long: `Resume running a session, optionally marking a task as completed
first (for work a person finished by hand). Bundles use this command as
their resume entry point. Defaults to the active session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContinue,
}

func init() {
	continueCmd.Flags().StringVar(&continueTaskID, "task", "", "task to mark completed before resuming")
	rootCmd.AddCommand(continueCmd)
}

func runContinue(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID, err := a.resolveSession(args)
	if err != nil {
		return err
	}

	if err := a.orch.Continue(cmd.Context(), sessionID, continueTaskID); err != nil {
		return err
	}

	final, err := a.sessions.LoadSession(sessionID)
	if err != nil {
		return err
	}
	fmt.Print(a.renderer.RenderSession(final))
	return nil
}
