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

// ProcessPullRequest upserts a pull-request row scoped to repoID. Field
// map: number, state, locked, title, body, user, assignee, merged_by,
// base (repo+ref), head (repo+ref), milestone, merged, mergeable,
// mergeable_state, comments → comments_count, review_comments →
// review_comments_count, commits → commits_count, additions, deletions,
// changed_files, created_at, updated_at, closed_at, merged_at.
func ProcessPullRequest(ctx context.Context, db database.DB, repoID int64, payload *github.PullRequest, opts Options) (Result, error) {
	if payload == nil || payload.GetID() == 0 {
		return Result{}, &apierr.MissingDataError{Field: "id", Payload: payload}
	}
	id := payload.GetID()
	fetchedAt := opts.fetchedAt()

	existing, err := model.PullRequestStore{DB: db}.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("loading pull request %d: %w", id, err)
	}

	row := model.PullRequest{ID: id, RepoID: repoID}
	if existing != nil {
		row = *existing
		row.ID, row.RepoID = id, repoID
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: row.LastReplicatedViaWebhookAt, APIAt: row.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	if payload.Number != nil {
		row.Number = payload.GetNumber()
	}
	if payload.State != nil {
		row.State = payload.GetState()
	}
	if payload.Locked != nil {
		row.Locked = payload.GetLocked()
	}
	if payload.Title != nil {
		row.Title = payload.GetTitle()
	}
	if payload.Body != nil {
		row.Body = payload.GetBody()
	}
	if payload.Merged != nil {
		row.Merged = payload.GetMerged()
	}
	if payload.Mergeable != nil {
		m := payload.GetMergeable()
		row.Mergeable = &m
	}
	if payload.MergeableState != nil {
		row.MergeableState = payload.GetMergeableState()
	}
	if payload.Comments != nil {
		row.CommentsCount = payload.GetComments()
	}
	if payload.ReviewComments != nil {
		row.ReviewCommentsCount = payload.GetReviewComments()
	}
	if payload.Commits != nil {
		row.CommitsCount = payload.GetCommits()
	}
	if payload.Additions != nil {
		row.Additions = payload.GetAdditions()
	}
	if payload.Deletions != nil {
		row.Deletions = payload.GetDeletions()
	}
	if payload.ChangedFiles != nil {
		row.ChangedFiles = payload.GetChangedFiles()
	}
	if payload.CreatedAt != nil {
		t := payload.GetCreatedAt().Time
		row.CreatedAt = &t
	}
	if payload.UpdatedAt != nil {
		t := payload.GetUpdatedAt().Time
		row.UpdatedAt = &t
	}
	if payload.ClosedAt != nil {
		t := payload.GetClosedAt().Time
		row.ClosedAt = &t
	}
	if payload.MergedAt != nil {
		t := payload.GetMergedAt().Time
		row.MergedAt = &t
	}

	if err := recurseUserRef(ctx, db, payload.User, opts.isNull("user"), fetchedAt, opts.Via, opts.Commit, &row.UserID, &row.UserLogin); err != nil {
		return Result{}, err
	}
	if err := recurseUserRef(ctx, db, payload.Assignee, opts.isNull("assignee"), fetchedAt, opts.Via, opts.Commit, &row.AssigneeID, &row.AssigneeLogin); err != nil {
		return Result{}, err
	}
	if err := recurseUserRef(ctx, db, payload.MergedBy, opts.isNull("merged_by"), fetchedAt, opts.Via, opts.Commit, &row.MergedByID, &row.MergedByLogin); err != nil {
		return Result{}, err
	}

	if base := payload.Base; base != nil && base.Repo != nil {
		if _, err := ProcessRepository(ctx, db, base.Repo, nil, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting pull request base repo: %w", err)
		}
		baseRepoID := base.Repo.GetID()
		row.BaseRepoID = &baseRepoID
		row.BaseRef = base.GetRef()
	}
	if head := payload.Head; head != nil && head.Repo != nil {
		if _, err := ProcessRepository(ctx, db, head.Repo, nil, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting pull request head repo: %w", err)
		}
		headRepoID := head.Repo.GetID()
		row.HeadRepoID = &headRepoID
		row.HeadRef = head.GetRef()
	} else if head != nil {
		// Head repo may be nil when the source fork has been deleted;
		// the ref is still meaningful, the FK is simply left unset.
		row.HeadRef = head.GetRef()
	}

	switch {
	case payload.Milestone != nil:
		if _, err := ProcessMilestone(ctx, db, repoID, payload.Milestone, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting pull request milestone: %w", err)
		}
		n := payload.Milestone.GetNumber()
		row.MilestoneRepoID, row.MilestoneNumber = &repoID, &n
	case opts.isNull("milestone"):
		row.MilestoneRepoID, row.MilestoneNumber = nil, nil
	}

	stampProvenance(&row.Provenance, opts.Via, fetchedAt)

	if !opts.Commit {
		return Result{Wrote: true, Key: id}, nil
	}
	if err := db.Upsert(ctx, "pull_requests", row, []string{"id"}); err != nil {
		return Result{}, translateWriteErr(db, "pull_requests", err)
	}
	return Result{Wrote: true, Key: id}, nil
}
