// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Category identifies one of GitHub's independently paginated contribution
// collections. The set is closed.
type Category string

const (
	CategoryCommit      Category = "commits"
	CategoryPullRequest Category = "pull_requests"
	CategoryIssue       Category = "issues"
	CategoryReview      Category = "reviews"
	CategoryRepository  Category = "repositories"
)

// Categories lists every contribution category in report order.
var Categories = []Category{
	CategoryCommit,
	CategoryPullRequest,
	CategoryIssue,
	CategoryReview,
	CategoryRepository,
}

// Event is the atomic unit returned by one page of one category's query.
// Count is 1 for every category except commits, where GitHub collapses a
// repository's commits on one day into a single node carrying a count.
type Event struct {
	Category   Category
	OccurredAt time.Time
	Repository string
	Count      int
}

// DayStats is the aggregated contribution report for one local calendar day.
// It is never mutated after the aggregator returns it.
type DayStats struct {
	Window           TimeWindow       `json:"window"`
	Counts           map[Category]int `json:"counts"`
	Repositories     []string         `json:"repositories_touched"`
	PullRequestRepos []string         `json:"pull_request_repos,omitempty"`
}

// PartialDayStats is a DayStats where one or more categories could not be
// retrieved. Unavailable maps each failed category to a short error summary,
// and the counts map omits those categories so a failure is never reported
// as zero activity.
type PartialDayStats struct {
	DayStats
	Unavailable map[Category]string `json:"unavailable"`
}

// PullRequest holds the size breakdown for a single pull request created
// within the report window.
type PullRequest struct {
	Repository   string    `json:"repository"`
	Number       int       `json:"number"`
	URL          string    `json:"url"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	ChangedFiles int       `json:"changed_files"`
	CreatedAt    time.Time `json:"created_at"`
}
