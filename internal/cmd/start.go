package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <feature name>",
	Short: "Start a new session for a feature",
	Long: `Create a session for the named feature and run it through the agent
workflow. The command returns when the session completes, pauses for a
person, or parks interrupted work in a bundle.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	feature := strings.Join(args, " ")
	session, err := a.orch.Start(cmd.Context(), feature)
	if session != nil {
		fmt.Printf("Session %s\n", session.ID)
	}
	if err != nil {
		return err
	}

	final, err := a.sessions.LoadSession(session.ID)
	if err != nil {
		return err
	}
	fmt.Print(a.renderer.RenderSession(final))
	return nil
}
