package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/mutex"
	"github.com/webhookdb/webhookdb/internal/process"
)

// PullRequests runs a full scan of a repository's pull requests. state
// is one of "open", "closed", "all" (default "open").
func (e *Engine) PullRequests(ctx context.Context, owner, repo, state string) error {
	if state == "" {
		state = "open"
	}
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	repoID := repoRow.ID
	scope := mutex.RepoScope(owner, repo, "pulls")
	headPath := fmt.Sprintf("repos/%s/%s/pulls?state=%s", owner, repo, state)

	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		prs, _, err := e.Upstream.GH().PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
			State:       state,
			ListOptions: github.ListOptions{Page: page, PerPage: perPage},
		})
		if err != nil {
			return 0, err
		}
		fetchedAt := time.Now().UTC()
		for _, pr := range prs {
			if _, err := process.ProcessPullRequest(ctx, e.DB, repoID, pr, process.Options{FetchedAt: fetchedAt, Via: "api", Commit: true}); err != nil && !isRecoverable(err) {
				return 0, err
			}
		}
		return len(prs), nil
	}

	finalize := func(ctx context.Context, startedAt time.Time) error {
		return finalizeParent(ctx, startedAt,
			func(ctx context.Context) (*time.Time, error) {
				return getScannedAt(ctx, e.DB, "repositories", "pull_requests_last_scanned_at", repoID)
			},
			func(ctx context.Context, t time.Time) error {
				return setScannedAt(ctx, e.DB, "repositories", "pull_requests_last_scanned_at", repoID, t)
			},
			func(ctx context.Context, previous time.Time) error { return reapPullRequests(ctx, e.DB, repoID, previous) },
		)
	}

	return e.Run(ctx, scope, headPath, 0, fetch, finalize)
}

// PullRequest runs a single, non-paginated PR sync — the
// POST /repos/{owner}/{repo}/pulls/{number} load endpoint.
func (e *Engine) PullRequest(ctx context.Context, owner, repo string, number int) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	pr, _, err := e.Upstream.GH().PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return translateGitHubErr(fmt.Sprintf("repos/%s/%s/pulls/%d", owner, repo, number), err)
	}
	_, err = process.ProcessPullRequest(ctx, e.DB, repoRow.ID, pr, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil && !isRecoverable(err) {
		return err
	}
	return nil
}
