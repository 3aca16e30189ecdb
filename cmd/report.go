// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/daystats/internal/domain"
	"github.com/naka-gawa/daystats/internal/format"
	"github.com/naka-gawa/daystats/internal/gateway"
	"github.com/naka-gawa/daystats/internal/usecase"
)

const inputDateLayout = "2006/01/02"

var reportCmd = &cobra.Command{
	Use:   "report [login]",
	Short: "Aggregates one day of GitHub contributions for a user",
	Long: `Aggregates contribution activity (commits, pull requests, issues,
reviews, repositories created) for a GitHub user on a single calendar day
and renders it as a text, markdown or JSON report.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		login := args[0]

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		dateStr, _ := cmd.Flags().GetString("date")
		offsetStr, _ := cmd.Flags().GetString("offset")
		apiURL, _ := cmd.Flags().GetString("url")
		outputFormat, _ := cmd.Flags().GetString("format")
		breakdown, _ := cmd.Flags().GetBool("breakdown")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			os.Exit(1)
		}

		// Resolve the report day before any network call: the date defaults
		// to today and the offset to the machine's zone.
		date := time.Now()
		if dateStr != "" {
			var err error
			date, err = time.Parse(inputDateLayout, dateStr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid --date format. Please use YYYY/MM/DD. Error: %v\n", err)
				os.Exit(1)
			}
		}
		offsetMinutes, err := parseOffsetMinutes(offsetStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --offset: %v\n", err)
			os.Exit(1)
		}
		window, err := domain.ResolveWindow(date.Year(), date.Month(), date.Day(), offsetMinutes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(token, apiURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		aggregator := usecase.NewAggregator(githubGateway, logger)

		stats, partial, err := aggregator.Aggregate(ctx, login, window)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				fmt.Fprintf(os.Stderr, "Timed out after %v waiting for GitHub.\n", timeout)
			} else {
				fmt.Fprintf(os.Stderr, "Failed to aggregate contributions: %v\n", err)
			}
			os.Exit(1)
		}

		report := format.Report{}
		if partial != nil {
			report.Stats = partial.DayStats
			report.Unavailable = partial.Unavailable
		} else {
			report.Stats = *stats
		}
		if breakdown {
			report.PullRequests = aggregator.PullRequestDetails(ctx, login, window, report.Stats.PullRequestRepos)
		}

		switch outputFormat {
		case "json":
			out := struct {
				domain.DayStats
				Unavailable  map[domain.Category]string `json:"unavailable,omitempty"`
				PullRequests []domain.PullRequest       `json:"pull_requests,omitempty"`
			}{report.Stats, report.Unavailable, report.PullRequests}
			jsonData, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to marshal report to JSON: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(jsonData))
		case "markdown":
			fmt.Println(format.Markdown(report))
		default:
			fmt.Println(format.Text(report))
		}
	},
}

// parseOffsetMinutes converts a ±HH:MM offset string into signed minutes.
// An empty string means the machine's current zone offset.
func parseOffsetMinutes(s string) (int, error) {
	if s == "" {
		_, seconds := time.Now().Zone()
		return seconds / 60, nil
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a ±HH:MM offset", s)
	}
	return sign * (t.Hour()*60 + t.Minute()), nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("date", "", "Date to report on (YYYY/MM/DD, default: today)")
	reportCmd.Flags().String("offset", "", "UTC offset defining the day, e.g. +09:00 (default: local zone)")
	reportCmd.Flags().String("url", "", "Override the GitHub GraphQL API url")
	reportCmd.Flags().StringP("format", "f", "text", "Output format: text, markdown or json")
	reportCmd.Flags().Bool("breakdown", true, "Fetch per-pull-request size details")
	reportCmd.Flags().Duration("timeout", 2*time.Minute, "Overall timeout for the report")
}
