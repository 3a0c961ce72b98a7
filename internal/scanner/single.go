package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/process"
)

// Issue runs a single, non-paginated issue sync — the
// POST /repos/{owner}/{repo}/issues/{number} load endpoint.
func (e *Engine) Issue(ctx context.Context, owner, repo string, number int) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	iss, _, err := e.Upstream.GH().Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return translateGitHubErr(fmt.Sprintf("repos/%s/%s/issues/%d", owner, repo, number), err)
	}
	if iss.PullRequestLinks != nil {
		return &apierr.NothingToDoError{Reason: "issue number refers to a pull request"}
	}
	_, err = process.ProcessIssue(ctx, e.DB, repoRow.ID, iss, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil && !isRecoverable(err) {
		return err
	}
	return nil
}

// Label runs a single, non-paginated label sync — the
// POST /repos/{owner}/{repo}/labels/{name} load endpoint.
func (e *Engine) Label(ctx context.Context, owner, repo, name string) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	l, _, err := e.Upstream.GH().Issues.GetLabel(ctx, owner, repo, name)
	if err != nil {
		return translateGitHubErr(fmt.Sprintf("repos/%s/%s/labels/%s", owner, repo, name), err)
	}
	_, err = process.ProcessLabel(ctx, e.DB, repoRow.ID, l, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil && !isRecoverable(err) {
		return err
	}
	return nil
}

// Milestone runs a single, non-paginated milestone sync — the
// POST /repos/{owner}/{repo}/milestones/{number} load endpoint.
func (e *Engine) Milestone(ctx context.Context, owner, repo string, number int) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	m, _, err := e.Upstream.GH().Issues.GetMilestone(ctx, owner, repo, number)
	if err != nil {
		return translateGitHubErr(fmt.Sprintf("repos/%s/%s/milestones/%d", owner, repo, number), err)
	}
	_, err = process.ProcessMilestone(ctx, e.DB, repoRow.ID, m, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil && !isRecoverable(err) {
		return err
	}
	return nil
}

// Hook runs a single, non-paginated hook sync — the
// POST /repos/{owner}/{repo}/hooks/{hook_id} load endpoint.
func (e *Engine) Hook(ctx context.Context, owner, repo string, hookID int64) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	h, _, err := e.Upstream.GH().Repositories.GetHook(ctx, owner, repo, hookID)
	if err != nil {
		return translateGitHubErr(fmt.Sprintf("repos/%s/%s/hooks/%d", owner, repo, hookID), err)
	}
	_, err = process.ProcessHook(ctx, e.DB, repoRow.ID, h, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil && !isRecoverable(err) {
		return err
	}
	return nil
}

// Repository runs a single, non-paginated repo sync — the
// POST /repos/{owner}/{repo} load endpoint.
func (e *Engine) Repository(ctx context.Context, owner, repo string) error {
	r, _, err := e.Upstream.GH().Repositories.Get(ctx, owner, repo)
	if err != nil {
		return translateGitHubErr(fmt.Sprintf("repos/%s/%s", owner, repo), err)
	}
	_, err = process.ProcessRepository(ctx, e.DB, r, nil, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil && !isRecoverable(err) {
		return err
	}
	return nil
}
