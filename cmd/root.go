// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "daystats",
	Short: "A CLI tool to report a single day of GitHub contributions.",
	Long: `daystats reports a GitHub user's contribution activity (commits,
pull requests, issues, reviews, repositories created) restricted to one
calendar day, as seen from the user's local timezone.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Pick up GITHUB_TOKEN and friends from a local .env file when present.
	_ = godotenv.Load()

	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
