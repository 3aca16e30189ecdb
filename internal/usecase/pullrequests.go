package usecase

import (
	"context"
	"sort"

	"github.com/naka-gawa/daystats/internal/domain"
)

// PullRequestDetails fetches the size breakdown for pull requests the user
// created within the window, one repository at a time. A repository that
// fails to fetch is logged and skipped; the breakdown is supplementary and
// must not take the report down with it.
func (a *Aggregator) PullRequestDetails(ctx context.Context, login string, window domain.TimeWindow, repos []string) []domain.PullRequest {
	var all []domain.PullRequest
	for _, repo := range repos {
		prs, err := a.fetcher.FetchPullRequests(ctx, login, repo, window)
		if err != nil {
			a.logger.Printf("Usecase: skipping pull request breakdown for %s: %v", repo, err)
			continue
		}
		all = append(all, prs...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Repository != all[j].Repository {
			return all[i].Repository < all[j].Repository
		}
		return all[i].Number < all[j].Number
	})
	return all
}
