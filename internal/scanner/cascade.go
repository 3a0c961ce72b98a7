package scanner

import (
	"context"

	"github.com/webhookdb/webhookdb/internal/jobs"
)

// RepositoryCascade runs every dependent scan for a repository in
// parallel, each under its own mutex scope so a second cascade spawned
// while the first is still running collapses onto the already-held
// scopes instead of duplicating work.
func (e *Engine) RepositoryCascade(ctx context.Context, owner, repo string) error {
	tasks := []jobs.Job{
		jobs.Func{Name: "cascade:issues", Fn: func(ctx context.Context) error { return e.Issues(ctx, owner, repo, "all") }},
		jobs.Func{Name: "cascade:labels", Fn: func(ctx context.Context) error { return e.Labels(ctx, owner, repo) }},
		jobs.Func{Name: "cascade:milestones", Fn: func(ctx context.Context) error { return e.Milestones(ctx, owner, repo) }},
		jobs.Func{Name: "cascade:pull_requests", Fn: func(ctx context.Context) error { return e.PullRequests(ctx, owner, repo, "all") }},
		jobs.Func{Name: "cascade:hooks", Fn: func(ctx context.Context) error { return e.Hooks(ctx, owner, repo) }},
	}
	return e.Scheduler.Group(ctx, tasks)
}

// PullRequestCascade runs the dependent scans for a single pull
// request — currently just its file set, but kept as its own cascade
// entry point since a pull request may grow more dependent scan kinds
// (reviews, commits) without changing the repository cascade's shape.
func (e *Engine) PullRequestCascade(ctx context.Context, owner, repo string, number int) error {
	tasks := []jobs.Job{
		jobs.Func{Name: "cascade:files", Fn: func(ctx context.Context) error { return e.PullRequestFiles(ctx, owner, repo, number) }},
	}
	return e.Scheduler.Group(ctx, tasks)
}
