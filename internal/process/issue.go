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

// ProcessIssue upserts an issue row scoped to repoID. Field map: number,
// state, title, body, user (id+login), assignee (id+login), closed_by
// (id+login), milestone (repo_id+number), created_at, updated_at,
// closed_at. The label set is replaced atomically: an empty Labels slice
// clears all links, a non-empty one becomes the new set, matching the
// Issue processor's documented label-replacement behavior.
func ProcessIssue(ctx context.Context, db database.DB, repoID int64, payload *github.Issue, opts Options) (Result, error) {
	if payload == nil || payload.GetID() == 0 {
		return Result{}, &apierr.MissingDataError{Field: "id", Payload: payload}
	}
	id := payload.GetID()
	fetchedAt := opts.fetchedAt()

	existing, err := model.IssueStore{DB: db}.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("loading issue %d: %w", id, err)
	}

	row := model.Issue{ID: id, RepoID: repoID}
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
	if payload.Title != nil {
		row.Title = payload.GetTitle()
	}
	if payload.Body != nil {
		row.Body = payload.GetBody()
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

	if err := recurseUserRef(ctx, db, payload.User, opts.isNull("user"), fetchedAt, opts.Via, opts.Commit, &row.UserID, &row.UserLogin); err != nil {
		return Result{}, err
	}
	if err := recurseUserRef(ctx, db, payload.Assignee, opts.isNull("assignee"), fetchedAt, opts.Via, opts.Commit, &row.AssigneeID, &row.AssigneeLogin); err != nil {
		return Result{}, err
	}
	if err := recurseUserRef(ctx, db, payload.ClosedBy, opts.isNull("closed_by"), fetchedAt, opts.Via, opts.Commit, &row.ClosedByID, &row.ClosedByLogin); err != nil {
		return Result{}, err
	}

	switch {
	case payload.Milestone != nil:
		if _, err := ProcessMilestone(ctx, db, repoID, payload.Milestone, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting issue milestone: %w", err)
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
	if err := db.Upsert(ctx, "issues", row, []string{"id"}); err != nil {
		return Result{}, translateWriteErr(db, "issues", err)
	}

	if payload.Labels != nil {
		names := make([]string, 0, len(payload.Labels))
		for _, l := range payload.Labels {
			name := l.GetName()
			if _, err := ProcessLabel(ctx, db, repoID, l, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
				return Result{}, fmt.Errorf("upserting issue label %q: %w", name, err)
			}
			names = append(names, name)
		}
		if err := (model.IssueStore{DB: db}).ReplaceLabels(ctx, id, repoID, names); err != nil {
			return Result{}, err
		}
	}

	return Result{Wrote: true, Key: id}, nil
}
