package driven

import (
	"context"

	"github.com/danakj/fizz/internal/domain/model"
)

// GitHubClient defines the driven port for reading review work from the
// source repository. Both fetches cover open items only; urgency
// classification and member resolution happen in the application layer.
type GitHubClient interface {
	FetchOpenPullRequests(ctx context.Context, owner, name string) ([]model.PullRequest, error)
	FetchOpenIssues(ctx context.Context, owner, name string) ([]model.Issue, error)
}
