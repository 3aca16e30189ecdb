// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/daystats/internal/domain"
)

const (
	// Bounded local retry for connection-level failures.
	maxTransientRetries = 2
	defaultBackoffBase  = 1 * time.Second

	// A rate-limited page is retried once, after sleeping until the reset
	// time. The sleep is capped so a bogus reset timestamp cannot hang the
	// run, and falls back to a flat wait when the reset time is unknown.
	maxRateLimitWait     = 1 * time.Hour
	defaultRateLimitWait = 1 * time.Minute
)

// Page is one page of one category's contribution collection. EndCursor is
// opaque; its encoding is owned by the remote API.
type Page struct {
	Events      []domain.Event
	EndCursor   string
	HasNextPage bool
}

// Fetcher defines the behavior of a gateway for fetching contribution
// information from GitHub.
type Fetcher interface {
	// FetchPage returns one page of the category's contributions within the
	// window, starting at cursor (empty means start of collection). Events
	// outside the window are filtered out before returning.
	FetchPage(ctx context.Context, login string, category domain.Category, window domain.TimeWindow, cursor string) (Page, error)
	// FetchPullRequests returns the size breakdown for pull requests in
	// repo (owner/name) authored by login and created within the window.
	FetchPullRequests(ctx context.Context, login, repo string, window domain.TimeWindow) ([]domain.PullRequest, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	backoffBase   time.Duration
	rateLimitWait time.Duration
}

type pageInfo struct {
	HasNextPage bool
	EndCursor   githubv4.String
}

// commitContributionsQuery pages through the per-repository commit
// contribution connections. The schema has no flat commit connection, so
// one cursor variable is shared across the repository groups; a single-day
// window collapses each repository to at most one node per day, which keeps
// the shared cursor harmless in practice.
type commitContributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			CommitContributionsByRepository []struct {
				Repository struct {
					NameWithOwner string
				}
				Contributions struct {
					PageInfo pageInfo
					Nodes    []struct {
						OccurredAt  githubv4.DateTime
						CommitCount int
					}
				} `graphql:"contributions(first: 100, after: $cursor)"`
			} `graphql:"commitContributionsByRepository(maxRepositories: 25)"`
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

type issueContributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			IssueContributions struct {
				PageInfo pageInfo
				Nodes    []struct {
					OccurredAt githubv4.DateTime
					Issue      struct {
						Repository struct {
							NameWithOwner string
						}
					}
				}
			} `graphql:"issueContributions(first: 100, after: $cursor)"`
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

type pullRequestContributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			PullRequestContributions struct {
				PageInfo pageInfo
				Nodes    []struct {
					OccurredAt  githubv4.DateTime
					PullRequest struct {
						Repository struct {
							NameWithOwner string
						}
					}
				}
			} `graphql:"pullRequestContributions(first: 100, after: $cursor)"`
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

type reviewContributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			PullRequestReviewContributions struct {
				PageInfo pageInfo
				Nodes    []struct {
					OccurredAt        githubv4.DateTime
					PullRequestReview struct {
						Repository struct {
							NameWithOwner string
						}
					}
				}
			} `graphql:"pullRequestReviewContributions(first: 100, after: $cursor)"`
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

type repositoryContributionsQuery struct {
	User struct {
		ContributionsCollection struct {
			RepositoryContributions struct {
				PageInfo pageInfo
				Nodes    []struct {
					OccurredAt githubv4.DateTime
					Repository struct {
						NameWithOwner string
					}
				}
			} `graphql:"repositoryContributions(first: 100, after: $cursor)"`
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

// repoPullRequestsQuery fetches pull request size details for one
// repository, newest first, so pagination can stop once a page crosses the
// window's start.
type repoPullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo pageInfo
			Nodes    []struct {
				Author struct {
					Login string
				}
				CreatedAt    githubv4.DateTime
				Additions    int
				Deletions    int
				ChangedFiles int
				Number       int
				URL          githubv4.URI
			}
		} `graphql:"pullRequests(orderBy: {field: CREATED_AT, direction: DESC}, first: 25, after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of
// GitHubGateway. apiURL overrides the GraphQL endpoint (GitHub Enterprise or
// local testing); empty means api.github.com.
func NewGitHubGateway(token, apiURL string, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	graphqlClient := githubv4.NewClient(httpClient)
	if apiURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(apiURL, httpClient)
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: graphqlClient,
		logger:        logger,
		backoffBase:   defaultBackoffBase,
		rateLimitWait: defaultRateLimitWait,
	}, nil
}

// FetchPage runs one contribution query and applies the local retry policy:
// transient network failures back off exponentially with a bounded attempt
// count, a rate-limited page sleeps until the signaled reset and retries
// exactly once, and everything else propagates as-is.
func (g *GitHubGateway) FetchPage(ctx context.Context, login string, category domain.Category, window domain.TimeWindow, cursor string) (Page, error) {
	rateRetried := false
	for attempt := 0; ; attempt++ {
		page, err := g.queryPage(ctx, login, category, window, cursor)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}

		switch cerr := classifyError(err, category, cursor).(type) {
		case *TransientNetworkError:
			if attempt >= maxTransientRetries {
				return Page{}, cerr
			}
			delay := g.backoffBase << attempt
			g.logger.Printf("  %s: network failure, retrying in %v: %v", category, delay, err)
			if serr := sleepCtx(ctx, delay); serr != nil {
				return Page{}, serr
			}
		case *RateLimitedError:
			if rateRetried {
				return Page{}, cerr
			}
			rateRetried = true
			if cerr.ResetAt.IsZero() {
				cerr.ResetAt = g.rateLimitReset(ctx)
			}
			wait := g.rateLimitWait
			if !cerr.ResetAt.IsZero() {
				wait = time.Until(cerr.ResetAt)
			}
			if wait > maxRateLimitWait {
				wait = maxRateLimitWait
			}
			if wait < 0 {
				wait = 0
			}
			g.logger.Printf("  %s: rate limited, waiting %v before retrying", category, wait.Round(time.Second))
			if serr := sleepCtx(ctx, wait); serr != nil {
				return Page{}, serr
			}
		default:
			return Page{}, cerr
		}
	}
}

// queryPage issues the category's GraphQL query and converts the response
// into a Page, dropping events outside the window.
func (g *GitHubGateway) queryPage(ctx context.Context, login string, category domain.Category, window domain.TimeWindow, cursor string) (Page, error) {
	variables := map[string]interface{}{
		"login":  githubv4.String(login),
		"from":   githubv4.DateTime{Time: window.Start},
		"to":     githubv4.DateTime{Time: window.End},
		"cursor": (*githubv4.String)(nil),
	}
	if cursor != "" {
		variables["cursor"] = githubv4.NewString(githubv4.String(cursor))
	}

	var page Page
	appendEvent := func(occurredAt time.Time, repo string, count int) {
		if !window.Contains(occurredAt) {
			return
		}
		page.Events = append(page.Events, domain.Event{
			Category:   category,
			OccurredAt: occurredAt,
			Repository: repo,
			Count:      count,
		})
	}

	switch category {
	case domain.CategoryCommit:
		var q commitContributionsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return Page{}, err
		}
		for _, byRepo := range q.User.ContributionsCollection.CommitContributionsByRepository {
			for _, node := range byRepo.Contributions.Nodes {
				appendEvent(node.OccurredAt.Time, byRepo.Repository.NameWithOwner, node.CommitCount)
			}
			if byRepo.Contributions.PageInfo.HasNextPage {
				page.HasNextPage = true
				page.EndCursor = string(byRepo.Contributions.PageInfo.EndCursor)
			}
		}
	case domain.CategoryIssue:
		var q issueContributionsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return Page{}, err
		}
		conn := q.User.ContributionsCollection.IssueContributions
		for _, node := range conn.Nodes {
			appendEvent(node.OccurredAt.Time, node.Issue.Repository.NameWithOwner, 1)
		}
		page.HasNextPage = conn.PageInfo.HasNextPage
		page.EndCursor = string(conn.PageInfo.EndCursor)
	case domain.CategoryPullRequest:
		var q pullRequestContributionsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return Page{}, err
		}
		conn := q.User.ContributionsCollection.PullRequestContributions
		for _, node := range conn.Nodes {
			appendEvent(node.OccurredAt.Time, node.PullRequest.Repository.NameWithOwner, 1)
		}
		page.HasNextPage = conn.PageInfo.HasNextPage
		page.EndCursor = string(conn.PageInfo.EndCursor)
	case domain.CategoryReview:
		var q reviewContributionsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return Page{}, err
		}
		conn := q.User.ContributionsCollection.PullRequestReviewContributions
		for _, node := range conn.Nodes {
			appendEvent(node.OccurredAt.Time, node.PullRequestReview.Repository.NameWithOwner, 1)
		}
		page.HasNextPage = conn.PageInfo.HasNextPage
		page.EndCursor = string(conn.PageInfo.EndCursor)
	case domain.CategoryRepository:
		var q repositoryContributionsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return Page{}, err
		}
		conn := q.User.ContributionsCollection.RepositoryContributions
		for _, node := range conn.Nodes {
			appendEvent(node.OccurredAt.Time, node.Repository.NameWithOwner, 1)
		}
		page.HasNextPage = conn.PageInfo.HasNextPage
		page.EndCursor = string(conn.PageInfo.EndCursor)
	default:
		return Page{}, &MalformedResponseError{Category: category, Cursor: cursor, Reason: "unknown contribution category"}
	}
	return page, nil
}

// FetchPullRequests pages through repo's pull requests newest first,
// keeping those authored by login and created within the window.
func (g *GitHubGateway) FetchPullRequests(ctx context.Context, login, repo string, window domain.TimeWindow) ([]domain.PullRequest, error) {
	owner, name, found := strings.Cut(repo, "/")
	if !found {
		return nil, fmt.Errorf("repository identifier %q is not owner/name", repo)
	}

	variables := map[string]interface{}{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"cursor": (*githubv4.String)(nil),
	}

	var prs []domain.PullRequest
	for {
		var q repoPullRequestsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to fetch pull requests for %s: %w", repo, err)
		}

		conn := q.Repository.PullRequests
		sawOlder := false
		for _, node := range conn.Nodes {
			createdAt := node.CreatedAt.Time
			if createdAt.Before(window.Start) {
				sawOlder = true
				continue
			}
			if !window.Contains(createdAt) || !strings.EqualFold(node.Author.Login, login) {
				continue
			}
			prs = append(prs, domain.PullRequest{
				Repository:   repo,
				Number:       node.Number,
				URL:          node.URL.String(),
				Additions:    node.Additions,
				Deletions:    node.Deletions,
				ChangedFiles: node.ChangedFiles,
				CreatedAt:    createdAt,
			})
		}

		// Results are newest first, so anything past the window start means
		// the remaining pages are older still.
		if sawOlder || !conn.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(conn.PageInfo.EndCursor)
		g.logger.Printf("  Fetching next page of pull requests for %s...", repo)
	}
	return prs, nil
}

// rateLimitReset asks the REST rate-limit endpoint for the GraphQL budget's
// reset time. Returns the zero time when the lookup itself fails.
func (g *GitHubGateway) rateLimitReset(ctx context.Context) time.Time {
	limits, _, err := g.restClient.RateLimit.Get(ctx)
	if err != nil || limits.GetGraphQL() == nil {
		g.logger.Printf("  Could not determine rate limit reset time: %v", err)
		return time.Time{}
	}
	return limits.GetGraphQL().Reset.Time
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
