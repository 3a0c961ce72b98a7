package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/mutex"
	"github.com/webhookdb/webhookdb/internal/process"
)

// Issues runs a full scan of a repository's issues. state is one of
// "open", "closed", "all" (default "open"), matching the HTTP load
// endpoint's state parameter.
func (e *Engine) Issues(ctx context.Context, owner, repo, state string) error {
	if state == "" {
		state = "open"
	}
	repoRow, err := model.RepositoryStore{DB: e.DB}.ByOwnerName(ctx, owner, repo)
	if err != nil {
		return err
	}
	repoID := repoRow.ID
	scope := mutex.RepoScope(owner, repo, "issues")
	headPath := fmt.Sprintf("repos/%s/%s/issues?state=%s", owner, repo, state)

	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		issues, _, err := e.Upstream.GH().Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
			State:       state,
			ListOptions: github.ListOptions{Page: page, PerPage: perPage},
		})
		if err != nil {
			return 0, err
		}
		fetchedAt := time.Now().UTC()
		for _, iss := range issues {
			if iss.PullRequestLinks != nil {
				continue // pull requests are also returned by this endpoint; skip, the PR scan owns them
			}
			if _, err := process.ProcessIssue(ctx, e.DB, repoID, iss, process.Options{FetchedAt: fetchedAt, Via: "api", Commit: true}); err != nil && !isRecoverable(err) {
				return 0, err
			}
		}
		return len(issues), nil
	}

	finalize := func(ctx context.Context, startedAt time.Time) error {
		return finalizeParent(ctx, startedAt,
			func(ctx context.Context) (*time.Time, error) { return getScannedAt(ctx, e.DB, "repositories", "issues_last_scanned_at", repoID) },
			func(ctx context.Context, t time.Time) error { return setScannedAt(ctx, e.DB, "repositories", "issues_last_scanned_at", repoID, t) },
			func(ctx context.Context, previous time.Time) error { return reapIssues(ctx, e.DB, repoID, previous) },
		)
	}

	return e.Run(ctx, scope, headPath, 0, fetch, finalize)
}

// getScannedAt reads a single nullable TEXT/TIMESTAMP column for one row.
func getScannedAt(ctx context.Context, db database.DB, table, column string, id int64) (*time.Time, error) {
	var holder struct {
		V *time.Time `db:"v"`
	}
	query := fmt.Sprintf("SELECT %s AS v FROM %s WHERE id = ?", column, table)
	if err := db.Get(ctx, &holder, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return holder.V, nil
}

func setScannedAt(ctx context.Context, db database.DB, table, column string, id int64, t time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, column)
	return db.Exec(ctx, query, t, id)
}

func isRecoverable(err error) bool {
	return isScanStale(err) || isScanSkip(err)
}
