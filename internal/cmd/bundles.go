package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Inspect and maintain pause/resume bundles",
}

var bundleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all bundles",
	RunE:  runBundleList,
}

var bundleShowCmd = &cobra.Command{
	Use:   "show <bundle-id>",
	Short: "Show one bundle in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleShow,
}

var bundleCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old completed and failed bundles",
	Long: `Remove terminal bundles older than the configured retention period,
deleting both their manifest entries and their artifact directories.`,
	RunE: runBundleCleanup,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleListCmd)
	bundleCmd.AddCommand(bundleShowCmd)
	bundleCmd.AddCommand(bundleCleanupCmd)
}

func runBundleList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	bundles, err := a.bundles.List()
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		fmt.Println("No bundles found.")
		return nil
	}

	for _, b := range bundles {
		resume := "-"
		if b.ResumeAt != nil {
			resume = b.ResumeAt.Local().Format(time.RFC3339)
		}
		fmt.Printf("%s  %-20s %-10s %-8s retries %d/%d  resume %s\n",
			b.ID, b.Status, b.Agent, b.Task, b.Retries, b.MaxRetries, resume)
	}
	return nil
}

func runBundleShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.bundles.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Bundle:      %s\n", b.ID)
	fmt.Printf("Session:     %s\n", b.Session)
	fmt.Printf("Agent:       %s\n", b.Agent)
	fmt.Printf("Task:        %s\n", b.Task)
	fmt.Printf("Status:      %s\n", b.Status)
	fmt.Printf("Retries:     %d/%d\n", b.Retries, b.MaxRetries)
	fmt.Printf("Created:     %s\n", b.CreatedAt.Local().Format(time.RFC1123))
	fmt.Printf("Updated:     %s\n", b.UpdatedAt.Local().Format(time.RFC1123))
	if b.ResumeAt != nil {
		fmt.Printf("Resume at:   %s\n", b.ResumeAt.Local().Format(time.RFC1123))
	}
	if b.NextCmd != "" {
		fmt.Printf("Next cmd:    %s\n", b.NextCmd)
	}
	if len(b.Artifacts) > 0 {
		fmt.Printf("Artifacts:\n")
		for _, art := range b.Artifacts {
			fmt.Printf("  - %s\n", art)
		}
	}
	for k, v := range b.Metadata {
		fmt.Printf("%s: %s\n", k, v)
	}
	return nil
}

func runBundleCleanup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.bundles.Cleanup(a.cfg.Bundle.Retention())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d bundles\n", removed)
	return nil
}
