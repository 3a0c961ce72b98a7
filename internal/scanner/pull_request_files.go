package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/mutex"
	"github.com/webhookdb/webhookdb/internal/process"
)

// defaultInlineFileThreshold is the changed_files count under which a
// webhook or load-endpoint PR update replaces the file set
// synchronously rather than enqueueing a scan, when
// Engine.PullFileThreshold is left unset.
const defaultInlineFileThreshold = 100

// PullRequestFiles runs a full, paginated scan of one pull request's
// changed-file set, scoped and mutexed independently of its parent
// repository's pull-request scan so a large diff's file listing never
// blocks other PR scans on the same repo.
func (e *Engine) PullRequestFiles(ctx context.Context, owner, repo string, number int) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	prRow, err := model.PullRequestStore{DB: e.DB}.ByRepoNumber(ctx, repoRow.ID, number)
	if err != nil {
		return err
	}
	if prRow == nil {
		return &apierr.NotFoundError{URL: fmt.Sprintf("repos/%s/%s/pulls/%d", owner, repo, number)}
	}
	pullRequestID := prRow.ID
	scope := mutex.PullRequestScope(owner, repo, number, "files")
	headPath := fmt.Sprintf("repos/%s/%s/pulls/%d/files", owner, repo, number)

	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		files, _, err := e.Upstream.GH().PullRequests.ListFiles(ctx, owner, repo, number, &github.ListOptions{Page: page, PerPage: perPage})
		if err != nil {
			return 0, err
		}
		fetchedAt := time.Now().UTC()
		for _, f := range files {
			if _, err := process.ProcessPullRequestFile(ctx, e.DB, pullRequestID, f, process.Options{FetchedAt: fetchedAt, Via: "api", Commit: true}); err != nil && !isRecoverable(err) {
				return 0, err
			}
		}
		return len(files), nil
	}

	finalize := func(ctx context.Context, startedAt time.Time) error {
		return finalizeParent(ctx, startedAt,
			func(ctx context.Context) (*time.Time, error) { return getScannedAt(ctx, e.DB, "pull_requests", "files_last_scanned_at", pullRequestID) },
			func(ctx context.Context, t time.Time) error {
				return setScannedAt(ctx, e.DB, "pull_requests", "files_last_scanned_at", pullRequestID, t)
			},
			func(ctx context.Context, previous time.Time) error { return reapPullRequestFiles(ctx, e.DB, pullRequestID, previous) },
		)
	}

	return e.Run(ctx, scope, headPath, 0, fetch, finalize)
}

// SyncPullRequestFilesInline fetches and replaces the complete file set
// for one pull request, walking the listing's pages one after another
// without page fan-out or mutex bookkeeping — the
// synchronous path webhook intake and the HTTP load endpoint take when
// the changed-file count is below the inline threshold.
func (e *Engine) SyncPullRequestFilesInline(ctx context.Context, pullRequestID int64, owner, repo string, number int) error {
	var all []*github.CommitFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := e.Upstream.GH().PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return translateGitHubErr(fmt.Sprintf("repos/%s/%s/pulls/%d/files", owner, repo, number), err)
		}
		all = append(all, files...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return process.ReplaceFiles(ctx, e.DB, pullRequestID, all, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
}

// ShouldSyncFilesInline reports whether changedFiles is small enough for
// the synchronous replacement path rather than an enqueued scan,
// honoring config.ServerConfig.PullFileThreshold via Engine.PullFileThreshold.
func (e *Engine) ShouldSyncFilesInline(changedFiles int) bool {
	threshold := e.PullFileThreshold
	if threshold <= 0 {
		threshold = defaultInlineFileThreshold
	}
	return changedFiles < threshold
}
