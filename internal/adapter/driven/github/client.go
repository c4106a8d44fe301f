// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client)
//
// An empty token leaves requests unauthenticated, which works for public
// repositories at a lower rate limit.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchOpenPullRequests retrieves the repository's open pull requests with
// their requested reviewers. It handles pagination automatically and maps
// go-github types to domain model types.
func (c *Client) FetchOpenPullRequests(ctx context.Context, owner, name string) ([]model.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var all []model.PullRequest
	for {
		var (
			prs  []*gh.PullRequest
			resp *gh.Response
		)
		err := retryWithBackoff(ctx, "list pull requests", func() error {
			var err error
			prs, resp, err = c.gh.PullRequests.List(ctx, owner, name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s/%s (page %d): %w", owner, name, opts.Page, err)
		}

		for _, pr := range prs {
			all = append(all, mapPullRequest(pr, owner, name))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if all == nil {
		all = []model.PullRequest{}
	}
	return all, nil
}

// FetchOpenIssues retrieves the repository's open issues with their labels.
// The Issues API also returns pull requests; those are filtered out. It
// handles pagination automatically.
func (c *Client) FetchOpenIssues(ctx context.Context, owner, name string) ([]model.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var all []model.Issue
	for {
		var (
			issues []*gh.Issue
			resp   *gh.Response
		)
		err := retryWithBackoff(ctx, "list issues", func() error {
			var err error
			issues, resp, err = c.gh.Issues.ListByRepo(ctx, owner, name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s/%s (page %d): %w", owner, name, opts.ListOptions.Page, err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, mapIssue(issue, owner, name))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	if all == nil {
		all = []model.Issue{}
	}
	return all, nil
}

func mapPullRequest(pr *gh.PullRequest, owner, name string) model.PullRequest {
	out := model.PullRequest{
		Number: pr.GetNumber(),
		Title:  pr.GetTitle(),
		Author: pr.GetUser().GetLogin(),
		URL:    pr.GetHTMLURL(),
	}
	if out.URL == "" {
		out.URL = fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, name, out.Number)
	}
	for _, r := range pr.RequestedReviewers {
		if login := r.GetLogin(); login != "" {
			out.RequestedReviewers = append(out.RequestedReviewers, login)
		}
	}
	return out
}

func mapIssue(issue *gh.Issue, owner, name string) model.Issue {
	out := model.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		URL:    issue.GetHTMLURL(),
	}
	if out.URL == "" {
		out.URL = fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, name, out.Number)
	}
	for _, label := range issue.Labels {
		if n := label.GetName(); n != "" {
			out.Labels = append(out.Labels, n)
		}
	}
	return out
}
