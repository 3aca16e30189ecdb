package usecase

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/daystats/internal/domain"
	"github.com/naka-gawa/daystats/internal/gateway"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the GitHub gateway without real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPage(ctx context.Context, login string, category domain.Category, window domain.TimeWindow, cursor string) (gateway.Page, error) {
	args := m.Called(ctx, login, category, window, cursor)
	return args.Get(0).(gateway.Page), args.Error(1)
}

func (m *mockFetcher) FetchPullRequests(ctx context.Context, login, repo string, window domain.TimeWindow) ([]domain.PullRequest, error) {
	args := m.Called(ctx, login, repo, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func testWindow(t *testing.T) domain.TimeWindow {
	t.Helper()
	window, err := domain.ResolveWindow(2024, time.March, 1, 0)
	require.NoError(t, err)
	return window
}

// emptyFirstPage stubs a category that has no contributions.
func emptyFirstPage(fetcher *mockFetcher, login string, category domain.Category, window domain.TimeWindow) {
	fetcher.On("FetchPage", mock.Anything, login, category, window, "").
		Return(gateway.Page{}, nil)
}

func event(category domain.Category, repo string, at time.Time, count int) domain.Event {
	return domain.Event{Category: category, OccurredAt: at, Repository: repo, Count: count}
}

// TestAggregator_Aggregate_FullDay covers the end-to-end happy path: commits
// arrive across two pages, no other category has activity.
func TestAggregator_Aggregate_FullDay(t *testing.T) {
	window := testWindow(t)
	fetcher := new(mockFetcher)
	logger := log.New(io.Discard, "", 0)

	fetcher.On("FetchPage", mock.Anything, "octocat", domain.CategoryCommit, window, "").
		Return(gateway.Page{
			Events:      []domain.Event{event(domain.CategoryCommit, "org/repo-a", window.Start.Add(time.Hour), 2)},
			HasNextPage: true,
			EndCursor:   "cursor-2",
		}, nil)
	fetcher.On("FetchPage", mock.Anything, "octocat", domain.CategoryCommit, window, "cursor-2").
		Return(gateway.Page{
			Events: []domain.Event{event(domain.CategoryCommit, "org/repo-b", window.Start.Add(2*time.Hour), 1)},
		}, nil)
	for _, category := range []domain.Category{domain.CategoryPullRequest, domain.CategoryIssue, domain.CategoryReview, domain.CategoryRepository} {
		emptyFirstPage(fetcher, "octocat", category, window)
	}

	aggregator := NewAggregator(fetcher, logger)
	stats, partial, err := aggregator.Aggregate(context.Background(), "octocat", window)

	require.NoError(t, err)
	assert.Nil(t, partial)
	require.NotNil(t, stats)
	assert.Equal(t, window, stats.Window)
	assert.Equal(t, map[domain.Category]int{
		domain.CategoryCommit:      3,
		domain.CategoryPullRequest: 0,
		domain.CategoryIssue:       0,
		domain.CategoryReview:      0,
		domain.CategoryRepository:  0,
	}, stats.Counts)
	assert.Equal(t, []string{"org/repo-a", "org/repo-b"}, stats.Repositories)
	fetcher.AssertExpectations(t)
}

func TestAggregator_Aggregate_DeduplicatesBoundaryEvents(t *testing.T) {
	window := testWindow(t)
	fetcher := new(mockFetcher)
	logger := log.New(io.Discard, "", 0)

	// The same event appears on both sides of a page boundary.
	duplicated := event(domain.CategoryIssue, "org/repo-a", window.Start.Add(time.Hour), 1)
	fetcher.On("FetchPage", mock.Anything, "octocat", domain.CategoryIssue, window, "").
		Return(gateway.Page{Events: []domain.Event{duplicated}, HasNextPage: true, EndCursor: "cursor-2"}, nil)
	fetcher.On("FetchPage", mock.Anything, "octocat", domain.CategoryIssue, window, "cursor-2").
		Return(gateway.Page{Events: []domain.Event{duplicated, event(domain.CategoryIssue, "org/repo-b", window.Start.Add(3*time.Hour), 1)}}, nil)
	for _, category := range []domain.Category{domain.CategoryCommit, domain.CategoryPullRequest, domain.CategoryReview, domain.CategoryRepository} {
		emptyFirstPage(fetcher, "octocat", category, window)
	}

	aggregator := NewAggregator(fetcher, logger)
	stats, partial, err := aggregator.Aggregate(context.Background(), "octocat", window)

	require.NoError(t, err)
	require.Nil(t, partial)
	assert.Equal(t, 2, stats.Counts[domain.CategoryIssue])
	assert.Equal(t, []string{"org/repo-a", "org/repo-b"}, stats.Repositories)
}

func TestAggregator_Aggregate_PartialOnCategoryFailure(t *testing.T) {
	window := testWindow(t)
	fetcher := new(mockFetcher)
	logger := log.New(io.Discard, "", 0)

	fetcher.On("FetchPage", mock.Anything, "octocat", domain.CategoryIssue, window, "").
		Return(gateway.Page{}, &gateway.MalformedResponseError{Category: domain.CategoryIssue, Reason: "schema drift"})
	fetcher.On("FetchPage", mock.Anything, "octocat", domain.CategoryPullRequest, window, "").
		Return(gateway.Page{Events: []domain.Event{event(domain.CategoryPullRequest, "org/repo-a", window.Start.Add(time.Hour), 1)}}, nil)
	for _, category := range []domain.Category{domain.CategoryCommit, domain.CategoryReview, domain.CategoryRepository} {
		emptyFirstPage(fetcher, "octocat", category, window)
	}

	aggregator := NewAggregator(fetcher, logger)
	stats, partial, err := aggregator.Aggregate(context.Background(), "octocat", window)

	require.NoError(t, err)
	assert.Nil(t, stats)
	require.NotNil(t, partial)

	// The failed category is flagged, not reported as zero.
	assert.Contains(t, partial.Unavailable, domain.CategoryIssue)
	_, counted := partial.Counts[domain.CategoryIssue]
	assert.False(t, counted)

	// The surviving categories keep their numbers.
	assert.Equal(t, 1, partial.Counts[domain.CategoryPullRequest])
	assert.Equal(t, []string{"org/repo-a"}, partial.Repositories)
	assert.Equal(t, []string{"org/repo-a"}, partial.PullRequestRepos)
}

func TestAggregator_Aggregate_AuthenticationAbortsRun(t *testing.T) {
	window := testWindow(t)
	fetcher := new(mockFetcher)
	logger := log.New(io.Discard, "", 0)

	for _, category := range domain.Categories {
		fetcher.On("FetchPage", mock.Anything, "octocat", category, window, "").
			Return(gateway.Page{}, gateway.ErrAuthentication).Maybe()
	}

	aggregator := NewAggregator(fetcher, logger)
	stats, partial, err := aggregator.Aggregate(context.Background(), "octocat", window)

	assert.ErrorIs(t, err, gateway.ErrAuthentication)
	assert.Nil(t, stats)
	assert.Nil(t, partial)
}

func TestAggregator_Aggregate_ExpiredContextSurfaces(t *testing.T) {
	window := testWindow(t)
	fetcher := new(mockFetcher)
	logger := log.New(io.Discard, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, category := range domain.Categories {
		fetcher.On("FetchPage", mock.Anything, "octocat", category, window, "").
			Return(gateway.Page{}, ctx.Err()).Maybe()
	}

	aggregator := NewAggregator(fetcher, logger)
	stats, partial, err := aggregator.Aggregate(ctx, "octocat", window)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, stats)
	assert.Nil(t, partial)
}

func TestAggregator_PullRequestDetails(t *testing.T) {
	window := testWindow(t)
	fetcher := new(mockFetcher)
	logger := log.New(io.Discard, "", 0)

	prA := domain.PullRequest{Repository: "org/repo-a", Number: 7, Additions: 10, Deletions: 2, ChangedFiles: 3, CreatedAt: window.Start.Add(time.Hour)}
	fetcher.On("FetchPullRequests", mock.Anything, "octocat", "org/repo-a", window).Return([]domain.PullRequest{prA}, nil)
	// A failing repository is skipped, not fatal.
	fetcher.On("FetchPullRequests", mock.Anything, "octocat", "org/repo-b", window).Return(nil, errors.New("boom"))

	aggregator := NewAggregator(fetcher, logger)
	prs := aggregator.PullRequestDetails(context.Background(), "octocat", window, []string{"org/repo-a", "org/repo-b"})

	assert.Equal(t, []domain.PullRequest{prA}, prs)
	fetcher.AssertExpectations(t)
}
