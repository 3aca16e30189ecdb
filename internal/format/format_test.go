package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/daystats/internal/domain"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	window, err := domain.ResolveWindow(2024, time.March, 1, 0)
	require.NoError(t, err)

	return Report{
		Stats: domain.DayStats{
			Window: window,
			Counts: map[domain.Category]int{
				domain.CategoryCommit:      3,
				domain.CategoryPullRequest: 1,
				domain.CategoryIssue:       0,
				domain.CategoryReview:      2,
				domain.CategoryRepository:  0,
			},
			Repositories:     []string{"org/repo-a", "org/repo-b"},
			PullRequestRepos: []string{"org/repo-a"},
		},
		PullRequests: []domain.PullRequest{
			{Repository: "org/repo-a", Number: 7, URL: "https://github.com/org/repo-a/pull/7", Additions: 10, Deletions: 2, ChangedFiles: 3},
			{Repository: "org/repo-a", Number: 9, URL: "https://github.com/org/repo-a/pull/9", Additions: 30, Deletions: 6, ChangedFiles: 5},
		},
	}
}

func TestText(t *testing.T) {
	out := Text(sampleReport(t))

	assert.Contains(t, out, "Daily GitHub Summary")
	assert.Contains(t, out, "Commits")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "org/repo-a, org/repo-b")
	assert.Contains(t, out, "Pull Request Breakdown")
	// Totals and medians over the two sample PRs.
	assert.Contains(t, out, "2 pull requests: +40/-8 lines across 8 files (median +20/-4)")
	assert.NotContains(t, out, "n/a")
	assert.NotContains(t, out, "Warning")
}

func TestText_UnavailableCategoryIsNotZero(t *testing.T) {
	report := sampleReport(t)
	report.PullRequests = nil
	delete(report.Stats.Counts, domain.CategoryIssue)
	report.Unavailable = map[domain.Category]string{
		domain.CategoryIssue: "malformed response",
	}

	out := Text(report)

	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "Warning: Issues could not be retrieved: malformed response")
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sampleReport(t))

	assert.Contains(t, out, "**Daily GitHub Summary**")
	assert.Contains(t, out, "| Commits | 3 |")
	assert.Contains(t, out, "| Reviews | 2 |")
	assert.Contains(t, out, "[see: #7](https://github.com/org/repo-a/pull/7)")
	assert.Contains(t, out, "(median +20/-4)")
}
