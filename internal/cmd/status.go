package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session status",
	Long:  `Render the given session, or the active session when no ID is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List all sessions",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		active, err := a.sessions.ActiveSession()
		if err != nil {
			return err
		}
		if active == nil {
			fmt.Println(a.renderer.RenderNoSession())
			return nil
		}
		fmt.Print(a.renderer.RenderSession(active))
		return nil
	}

	session, err := a.sessions.LoadSession(args[0])
	if err != nil {
		return err
	}
	fmt.Print(a.renderer.RenderSession(session))
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.sessions.ListSessions()
	if err != nil {
		return err
	}
	fmt.Print(a.renderer.RenderSessionList(sessions))
	return nil
}
