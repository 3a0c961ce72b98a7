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

// LabelKey is the composite primary key (repo_id, name).
type LabelKey struct {
	RepoID int64
	Name   string
}

// ProcessLabel upserts an issue-label row scoped to repoID. Field map:
// color. Name is part of the identity, not a mutable field — a rename
// (label.edited with changes.name) is modeled as a distinct entity,
// matching upstream's own "name is the key" webhook semantics for
// labels.
func ProcessLabel(ctx context.Context, db database.DB, repoID int64, payload *github.Label, opts Options) (Result, error) {
	if payload == nil || payload.GetName() == "" {
		return Result{}, &apierr.MissingDataError{Field: "name", Payload: payload}
	}
	name := payload.GetName()
	fetchedAt := opts.fetchedAt()

	existing, err := model.LabelStore{DB: db}.Get(ctx, repoID, name)
	if err != nil {
		return Result{}, fmt.Errorf("loading label %d/%s: %w", repoID, name, err)
	}

	row := model.IssueLabel{RepoID: repoID, Name: name}
	if existing != nil {
		row = *existing
		row.RepoID, row.Name = repoID, name
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: row.LastReplicatedViaWebhookAt, APIAt: row.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	if payload.Color != nil {
		row.Color = payload.GetColor()
	}

	stampProvenance(&row.Provenance, opts.Via, fetchedAt)

	if !opts.Commit {
		return Result{Wrote: true, Key: LabelKey{repoID, name}}, nil
	}
	if err := db.Upsert(ctx, "issue_labels", row, []string{"repo_id", "name"}); err != nil {
		return Result{}, translateWriteErr(db, "issue_labels", err)
	}
	return Result{Wrote: true, Key: LabelKey{repoID, name}}, nil
}
