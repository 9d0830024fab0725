package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailfold application
var rootCmd = &cobra.Command{
	Use:   "mailfold",
	Short: "Sorts Gmail into a hierarchical label taxonomy",
	Long: `mailfold organizes a Gmail mailbox into a stable hierarchical label
taxonomy. It ensures the label hierarchy exists, classifies every
message against the taxonomy rules, migrates legacy labels to their
replacements, and flags whatever it cannot place for review.

It can run as:
  - A standalone CLI tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailfold version %s\n" .Version}}`)

	// If no subcommand is provided, run the organize command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "organize")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailfold version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newOrganizeCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
