// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/naka-gawa/daystats/internal/domain"
	"github.com/naka-gawa/daystats/internal/gateway"
	"golang.org/x/sync/errgroup"
)

// Aggregator is the use case for building a single-day contribution report.
// It orchestrates the paginated fetching and merging of the five
// contribution categories.
type Aggregator struct {
	fetcher gateway.Fetcher
	logger  *log.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *log.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
	}
}

// categoryResult is one category's collection outcome: either its events or
// the error that stopped it.
type categoryResult struct {
	category domain.Category
	events   []domain.Event
	err      error
}

// Aggregate collects every contribution category for login within window and
// merges the results. The categories run concurrently; each writes only its
// own result slot, and the merge happens single-writer after all of them
// resolve. Exactly one of the two returned reports is non-nil: the full
// DayStats when every category succeeded, or the PartialDayStats when one or
// more failed. A rejected credential or an expired context aborts the run
// with an error instead.
func (a *Aggregator) Aggregate(ctx context.Context, login string, window domain.TimeWindow) (*domain.DayStats, *domain.PartialDayStats, error) {
	a.logger.Printf("Usecase: Collecting contributions for %s in [%s, %s)...", login, window.Start, window.End)

	results := make([]categoryResult, len(domain.Categories))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, category := range domain.Categories {
		i, category := i, category
		eg.Go(func() error {
			events, err := collect(egCtx, a.fetcher, login, category, window)
			results[i] = categoryResult{category: category, events: events, err: err}
			if err != nil {
				a.logger.Printf("Usecase: %s collection failed: %v", category, err)
			} else {
				a.logger.Printf("Usecase: %s collection finished with %d events.", category, len(events))
			}
			// A rejected credential fails every category identically, so it
			// aborts the run rather than degrading the report.
			if errors.Is(err, gateway.ErrAuthentication) {
				return err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	// A caller-level timeout surfaces as the context error; no partially
	// built report escapes.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stats, partial := merge(window, results)
	a.logger.Println("Usecase: Aggregation complete.")
	return stats, partial, nil
}

// merge folds the per-category results into one report. Events are
// deduplicated by (category, repository, timestamp), which defends against
// the remote returning the same event on adjacent pages at a boundary.
// Failed categories are omitted from the counts map and recorded in
// Unavailable so they stay distinguishable from true zero activity.
func merge(window domain.TimeWindow, results []categoryResult) (*domain.DayStats, *domain.PartialDayStats) {
	type dedupKey struct {
		category   domain.Category
		repository string
		unixNano   int64
	}

	counts := make(map[domain.Category]int)
	seen := make(map[dedupKey]struct{})
	repoSet := make(map[string]struct{})
	prRepoSet := make(map[string]struct{})
	unavailable := make(map[domain.Category]string)

	for _, res := range results {
		if res.err != nil {
			unavailable[res.category] = res.err.Error()
			continue
		}
		counts[res.category] = 0
		for _, ev := range res.events {
			key := dedupKey{ev.Category, ev.Repository, ev.OccurredAt.UnixNano()}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			counts[ev.Category] += ev.Count
			repoSet[ev.Repository] = struct{}{}
			if ev.Category == domain.CategoryPullRequest {
				prRepoSet[ev.Repository] = struct{}{}
			}
		}
	}

	stats := domain.DayStats{
		Window:           window,
		Counts:           counts,
		Repositories:     sortedKeys(repoSet),
		PullRequestRepos: sortedKeys(prRepoSet),
	}
	if len(unavailable) > 0 {
		return nil, &domain.PartialDayStats{DayStats: stats, Unavailable: unavailable}
	}
	return &stats, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
