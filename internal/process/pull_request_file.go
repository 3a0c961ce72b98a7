package process

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/freshness"
	"github.com/webhookdb/webhookdb/internal/model"
)

// FileKey is the composite primary key (pull_request_id, sha).
type FileKey struct {
	PullRequestID int64
	SHA           string
}

// ProcessPullRequestFile upserts a pull-request-file row. A file entry
// with no sha is a documented skip: upstream marks renamed files this
// way, and the processor returns apierr.NothingToDoError
// rather than raising — the caller (ReplaceFiles, webhook intake) treats
// it as a recovered no-op, never an alert.
func ProcessPullRequestFile(ctx context.Context, db database.DB, pullRequestID int64, payload *github.CommitFile, opts Options) (Result, error) {
	if payload == nil || payload.GetSHA() == "" {
		return Result{}, &apierr.NothingToDoError{Reason: "pull request file has no sha (renamed entry)"}
	}
	sha := payload.GetSHA()
	fetchedAt := opts.fetchedAt()

	existing, err := model.PullRequestFileStore{DB: db}.Get(ctx, pullRequestID, sha)
	if err != nil {
		return Result{}, fmt.Errorf("loading pull request file %d/%s: %w", pullRequestID, sha, err)
	}

	row := model.PullRequestFile{PullRequestID: pullRequestID, SHA: sha}
	if existing != nil {
		row = *existing
		row.PullRequestID, row.SHA = pullRequestID, sha
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: row.LastReplicatedViaWebhookAt, APIAt: row.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	if payload.Filename != nil {
		row.Filename = payload.GetFilename()
	}
	if payload.Status != nil {
		row.Status = payload.GetStatus()
	}
	if payload.Additions != nil {
		row.Additions = payload.GetAdditions()
	}
	if payload.Deletions != nil {
		row.Deletions = payload.GetDeletions()
	}
	if payload.Changes != nil {
		row.Changes = payload.GetChanges()
	}
	if payload.Patch != nil {
		row.Patch = payload.GetPatch()
	}

	stampProvenance(&row.Provenance, opts.Via, fetchedAt)

	if !opts.Commit {
		return Result{Wrote: true, Key: FileKey{pullRequestID, sha}}, nil
	}
	if err := db.Upsert(ctx, "pull_request_files", row, []string{"pull_request_id", "sha"}); err != nil {
		return Result{}, translateWriteErr(db, "pull_request_files", err)
	}
	return Result{Wrote: true, Key: FileKey{pullRequestID, sha}}, nil
}

// ReplaceFiles makes the stored file set equal to exactly the upstream
// file list at fetchedAt: new entries upserted, entries no longer
// listed deleted. Files without a sha are silently skipped
// (NothingToDo), never aborting the rest of the set.
func ReplaceFiles(ctx context.Context, db database.DB, pullRequestID int64, files []*github.CommitFile, opts Options) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if _, err := ProcessPullRequestFile(ctx, db, pullRequestID, f, opts); err != nil {
			if isStale(err) || isNothingToDo(err) {
				if f.GetSHA() != "" {
					seen[f.GetSHA()] = true
				}
				continue
			}
			return err
		}
		seen[f.GetSHA()] = true
	}

	store := model.PullRequestFileStore{DB: db}
	existing, err := store.ByPullRequest(ctx, pullRequestID)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if !seen[row.SHA] {
			if err := store.Delete(ctx, pullRequestID, row.SHA); err != nil {
				return err
			}
		}
	}
	return nil
}
