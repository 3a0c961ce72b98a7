package process

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/freshness"
	"github.com/webhookdb/webhookdb/internal/model"
)

// ProcessHook upserts a repository_hook row scoped to repoID. Field
// map: name, config (opaque key→string mapping, stored as its raw JSON
// encoding — target_url is lifted out of config.url since that's the
// field upstream actually uses for delivery), events (ordered set,
// stored as its raw JSON array encoding), active, last_response (opaque
// mapping, stored as its raw JSON encoding).
func ProcessHook(ctx context.Context, db database.DB, repoID int64, payload *github.Hook, opts Options) (Result, error) {
	if payload == nil || payload.GetID() == 0 {
		return Result{}, &apierr.MissingDataError{Field: "id", Payload: payload}
	}
	id := payload.GetID()
	fetchedAt := opts.fetchedAt()

	existing, err := model.HookStore{DB: db}.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("loading hook %d: %w", id, err)
	}

	row := model.RepositoryHook{ID: id, RepoID: repoID}
	if existing != nil {
		row = *existing
		row.ID, row.RepoID = id, repoID
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: row.LastReplicatedViaWebhookAt, APIAt: row.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	if payload.Name != nil {
		row.Name = payload.GetName()
	}
	if payload.Active != nil {
		row.Active = payload.GetActive()
	}
	if payload.Config != nil {
		if payload.Config.URL != nil {
			row.TargetURL = payload.Config.GetURL()
		}
		if b, err := json.Marshal(payload.Config); err == nil {
			row.ConfigJSON = string(b)
		}
	}
	if payload.Events != nil {
		if b, err := json.Marshal(payload.Events); err == nil {
			row.EventsJSON = string(b)
		}
	}
	if payload.LastResponse != nil {
		if b, err := json.Marshal(payload.LastResponse); err == nil {
			row.LastResponseJSON = string(b)
		}
	}

	stampProvenance(&row.Provenance, opts.Via, fetchedAt)

	if !opts.Commit {
		return Result{Wrote: true, Key: id}, nil
	}
	if err := db.Upsert(ctx, "repository_hooks", row, []string{"id"}); err != nil {
		return Result{}, translateWriteErr(db, "repository_hooks", err)
	}
	return Result{Wrote: true, Key: id}, nil
}
