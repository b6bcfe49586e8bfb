package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseReason string

var pauseCmd = &cobra.Command{
	Use:   "pause [session-id]",
	Short: "Pause a session",
	Long: `Pause a session. A task in progress is demoted to blocked; the
session will not advance until resumed. Defaults to the active session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a paused session",
	Long: `Reactivate a paused session and continue running its workflow.
Blocked tasks restart from pending. Defaults to the active session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func init() {
	pauseCmd.Flags().StringVar(&pauseReason, "reason", "", "why the session is being paused")
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runPause(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID, err := a.resolveSession(args)
	if err != nil {
		return err
	}

	if err := a.sessions.PauseSession(sessionID, pauseReason); err != nil {
		return err
	}
	fmt.Printf("Session %s paused\n", sessionID)
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID, err := a.resolveSession(args)
	if err != nil {
		return err
	}

	if err := a.orch.Continue(cmd.Context(), sessionID, ""); err != nil {
		return err
	}

	final, err := a.sessions.LoadSession(sessionID)
	if err != nil {
		return err
	}
	fmt.Print(a.renderer.RenderSession(final))
	return nil
}
