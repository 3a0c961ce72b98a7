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

// MilestoneKey is the composite primary key (repo_id, number).
type MilestoneKey struct {
	RepoID int64
	Number int
}

// ProcessMilestone upserts a milestone row scoped to repoID. Field map:
// title, state, description, creator (id+login), open_issues →
// open_issues_count, closed_issues → closed_issues_count, created_at,
// updated_at, closed_at, due_on → due_at.
//
// If payload carries only a URL (a hook/label-style reference), resolve
// repoID via RepoFromURL before calling; repoID is always supplied by
// the caller here since a milestone payload's own Number has no meaning
// without it.
func ProcessMilestone(ctx context.Context, db database.DB, repoID int64, payload *github.Milestone, opts Options) (Result, error) {
	if payload == nil || payload.GetNumber() == 0 {
		return Result{}, &apierr.MissingDataError{Field: "number", Payload: payload}
	}
	number := payload.GetNumber()
	fetchedAt := opts.fetchedAt()

	existing, err := model.MilestoneStore{DB: db}.Get(ctx, repoID, number)
	if err != nil {
		return Result{}, fmt.Errorf("loading milestone %d/%d: %w", repoID, number, err)
	}

	row := model.Milestone{RepoID: repoID, Number: number}
	if existing != nil {
		row = *existing
		row.RepoID, row.Number = repoID, number
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: row.LastReplicatedViaWebhookAt, APIAt: row.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	if payload.Title != nil {
		row.Title = payload.GetTitle()
	}
	if payload.State != nil {
		row.State = payload.GetState()
	}
	if payload.Description != nil {
		row.Description = payload.GetDescription()
	}
	if payload.OpenIssues != nil {
		n := payload.GetOpenIssues()
		row.OpenIssuesCount = n
	}
	if payload.ClosedIssues != nil {
		n := payload.GetClosedIssues()
		row.ClosedIssuesCount = n
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
	if payload.DueOn != nil {
		t := payload.GetDueOn().Time
		row.DueAt = &t
	}

	switch {
	case payload.Creator != nil:
		if _, err := ProcessUser(ctx, db, payload.Creator, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting milestone creator: %w", err)
		}
		id := payload.Creator.GetID()
		login := payload.Creator.GetLogin()
		row.CreatorID, row.CreatorLogin = &id, &login
	case opts.isNull("creator"):
		row.CreatorID, row.CreatorLogin = nil, nil
	}

	stampProvenance(&row.Provenance, opts.Via, fetchedAt)

	if !opts.Commit {
		return Result{Wrote: true, Key: MilestoneKey{repoID, number}}, nil
	}
	if err := db.Upsert(ctx, "milestones", row, []string{"repo_id", "number"}); err != nil {
		return Result{}, translateWriteErr(db, "milestones", err)
	}
	return Result{Wrote: true, Key: MilestoneKey{repoID, number}}, nil
}
