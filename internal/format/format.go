// Package format renders a day's contribution report for the console.
package format

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/naka-gawa/daystats/internal/domain"
)

// Report bundles everything the renderers need: the aggregated stats, the
// categories that could not be retrieved (empty on a full success), and the
// optional pull request breakdown.
type Report struct {
	Stats        domain.DayStats
	Unavailable  map[domain.Category]string
	PullRequests []domain.PullRequest
}

// categoryLabels maps categories to their display names, in report order.
var categoryLabels = map[domain.Category]string{
	domain.CategoryCommit:      "Commits",
	domain.CategoryPullRequest: "Pull Requests",
	domain.CategoryIssue:       "Issues",
	domain.CategoryReview:      "Reviews",
	domain.CategoryRepository:  "Repositories Created",
}

// Text renders the report as console tables. Unavailable categories show as
// "n/a" rather than zero.
func Text(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Daily GitHub Summary (%s to %s UTC)\n\n",
		r.Stats.Window.Start.Format("2006-01-02 15:04"),
		r.Stats.Window.End.Format("2006-01-02 15:04"))

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Contribution", "Count"})
	for _, category := range domain.Categories {
		table.Append([]string{categoryLabels[category], countCell(r, category)})
	}
	table.Render()

	if len(r.Stats.Repositories) > 0 {
		fmt.Fprintf(&b, "\nRepositories touched: %s\n", strings.Join(r.Stats.Repositories, ", "))
	}

	for category, reason := range r.Unavailable {
		fmt.Fprintf(&b, "\nWarning: %s could not be retrieved: %s\n", categoryLabels[category], reason)
	}

	if len(r.PullRequests) > 0 {
		fmt.Fprintf(&b, "\nPull Request Breakdown:\n")
		prTable := tablewriter.NewWriter(&b)
		prTable.SetHeader([]string{"Repo", "Number", "Additions", "Deletions", "Files"})
		for _, pr := range r.PullRequests {
			prTable.Append([]string{
				pr.Repository,
				fmt.Sprintf("#%d", pr.Number),
				fmt.Sprintf("%d", pr.Additions),
				fmt.Sprintf("%d", pr.Deletions),
				fmt.Sprintf("%d", pr.ChangedFiles),
			})
		}
		prTable.Render()
		b.WriteString(sizeSummary(r.PullRequests))
	}

	return b.String()
}

// Markdown renders the report as pipe tables for copy/paste.
func Markdown(r Report) string {
	var b strings.Builder

	b.WriteString("**Daily GitHub Summary**:\n\n")
	b.WriteString("| Contribution | Count |\n")
	b.WriteString("| -- | -- |\n")
	for _, category := range domain.Categories {
		fmt.Fprintf(&b, "| %s | %s |\n", categoryLabels[category], countCell(r, category))
	}

	if len(r.Stats.Repositories) > 0 {
		fmt.Fprintf(&b, "\nRepositories touched: %s\n", strings.Join(r.Stats.Repositories, ", "))
	}

	if len(r.PullRequests) > 0 {
		b.WriteString("\n**Pull Request Breakdown**:\n\n")
		b.WriteString("| Repo | Additions | Deletions | Files | Number |\n")
		b.WriteString("| -- | -- | -- | -- | -- |\n")
		for _, pr := range r.PullRequests {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | [see: #%d](%s) |\n",
				pr.Repository, pr.Additions, pr.Deletions, pr.ChangedFiles, pr.Number, pr.URL)
		}
		b.WriteString(sizeSummary(r.PullRequests))
	}

	return b.String()
}

func countCell(r Report, category domain.Category) string {
	if _, failed := r.Unavailable[category]; failed {
		return "n/a"
	}
	return fmt.Sprintf("%d", r.Stats.Counts[category])
}

// sizeSummary condenses pull request sizes into totals and medians.
func sizeSummary(prs []domain.PullRequest) string {
	additions := make([]float64, len(prs))
	deletions := make([]float64, len(prs))
	files := make([]float64, len(prs))
	for i, pr := range prs {
		additions[i] = float64(pr.Additions)
		deletions[i] = float64(pr.Deletions)
		files[i] = float64(pr.ChangedFiles)
	}

	totalAdds, _ := stats.Sum(additions)
	totalDels, _ := stats.Sum(deletions)
	totalFiles, _ := stats.Sum(files)
	medianAdds, _ := stats.Median(additions)
	medianDels, _ := stats.Median(deletions)

	return fmt.Sprintf("\n%d pull requests: +%.0f/-%.0f lines across %.0f files (median +%.0f/-%.0f)\n",
		len(prs), totalAdds, totalDels, totalFiles, medianAdds, medianDels)
}
