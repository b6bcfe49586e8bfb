package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage NEED-HUMAN alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open alerts",
	RunE:  runAlertsList,
}

var alertsClearCmd = &cobra.Command{
	Use:   "clear <alert-file>",
	Short: "Clear a resolved alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsClear,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsClearCmd)
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.alerts.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No open alerts.")
		return nil
	}
	for _, name := range pending {
		fmt.Println(name)
	}
	return nil
}

func runAlertsClear(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.alerts.Clear(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cleared %s\n", args[0])
	return nil
}
