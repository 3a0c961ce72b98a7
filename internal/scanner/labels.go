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

// Labels runs a full scan of a repository's issue labels.
func (e *Engine) Labels(ctx context.Context, owner, repo string) error {
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	repoID := repoRow.ID
	scope := mutex.RepoScope(owner, repo, "labels")
	headPath := fmt.Sprintf("repos/%s/%s/labels", owner, repo)

	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		labels, _, err := e.Upstream.GH().Issues.ListLabels(ctx, owner, repo, &github.ListOptions{Page: page, PerPage: perPage})
		if err != nil {
			return 0, err
		}
		fetchedAt := time.Now().UTC()
		for _, l := range labels {
			if _, err := process.ProcessLabel(ctx, e.DB, repoID, l, process.Options{FetchedAt: fetchedAt, Via: "api", Commit: true}); err != nil && !isRecoverable(err) {
				return 0, err
			}
		}
		return len(labels), nil
	}

	finalize := func(ctx context.Context, startedAt time.Time) error {
		return finalizeParent(ctx, startedAt,
			func(ctx context.Context) (*time.Time, error) { return getScannedAt(ctx, e.DB, "repositories", "labels_last_scanned_at", repoID) },
			func(ctx context.Context, t time.Time) error { return setScannedAt(ctx, e.DB, "repositories", "labels_last_scanned_at", repoID, t) },
			func(ctx context.Context, previous time.Time) error { return reapLabels(ctx, e.DB, repoID, previous) },
		)
	}

	return e.Run(ctx, scope, headPath, 0, fetch, finalize)
}
