package scanner

import (
	"context"
	"time"

	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/model"
)

// finalizeParent is the closing phase of every scan, for a parent row
// carrying one *_last_scanned_at column: read the previous value, set
// it to startedAt, and — only when a previous value existed — reap
// every child whose last_replicated_at is strictly before it.
// getPrevious/setScanned operate on the single parent row; reap is
// called once with the previous instant when non-nil.
func finalizeParent(ctx context.Context, startedAt time.Time, getPrevious func(ctx context.Context) (*time.Time, error), setScanned func(ctx context.Context, t time.Time) error, reap func(ctx context.Context, previous time.Time) error) error {
	previous, err := getPrevious(ctx)
	if err != nil {
		return err
	}
	if err := setScanned(ctx, startedAt); err != nil {
		return err
	}
	if previous != nil {
		return reap(ctx, *previous)
	}
	return nil
}

func reapIssues(ctx context.Context, db database.DB, repoID int64, previous time.Time) error {
	rows, err := model.IssueStore{DB: db}.ByRepo(ctx, repoID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.IssueStore{DB: db}).Delete(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func reapLabels(ctx context.Context, db database.DB, repoID int64, previous time.Time) error {
	rows, err := model.LabelStore{DB: db}.ByRepo(ctx, repoID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.LabelStore{DB: db}).Delete(ctx, repoID, r.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func reapMilestones(ctx context.Context, db database.DB, repoID int64, previous time.Time) error {
	rows, err := model.MilestoneStore{DB: db}.ByRepo(ctx, repoID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.MilestoneStore{DB: db}).Delete(ctx, repoID, r.Number); err != nil {
				return err
			}
		}
	}
	return nil
}

func reapPullRequests(ctx context.Context, db database.DB, repoID int64, previous time.Time) error {
	rows, err := model.PullRequestStore{DB: db}.ByRepo(ctx, repoID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.PullRequestStore{DB: db}).Delete(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func reapHooks(ctx context.Context, db database.DB, repoID int64, previous time.Time) error {
	rows, err := model.HookStore{DB: db}.ByRepo(ctx, repoID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.HookStore{DB: db}).Delete(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func reapPullRequestFiles(ctx context.Context, db database.DB, pullRequestID int64, previous time.Time) error {
	rows, err := model.PullRequestFileStore{DB: db}.ByPullRequest(ctx, pullRequestID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.PullRequestFileStore{DB: db}).Delete(ctx, pullRequestID, r.SHA); err != nil {
				return err
			}
		}
	}
	return nil
}

func reapRepositories(ctx context.Context, db database.DB, ownerID int64, previous time.Time) error {
	rows, err := model.RepositoryStore{DB: db}.ByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.LastReplicatedAt().Before(previous) {
			if err := (model.RepositoryStore{DB: db}).Delete(ctx, r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
